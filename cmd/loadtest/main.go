package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	wsURL     = flag.String("url", "ws://localhost:8080/ws", "chat websocket url")
	userCount = flag.Int("users", 100, "concurrent anonymous connections") // ⚠️ Start small, every post hits the database.
	msgCount  = flag.Int("messages", 20, "messages per connection")
	pause     = flag.Duration("pause", 10*time.Millisecond, "delay between posts")
	drain     = flag.Duration("drain", 2*time.Second, "how long to keep reading after the last post")
)

type frame struct {
	Type string `json:"type"`
}

func main() {
	flag.Parse()
	log.Printf("🔥 STARTING STRESS TEST: %d users, %d messages each...", *userCount, *msgCount)

	var (
		wg       sync.WaitGroup
		sent     atomic.Int64
		received atomic.Int64
		messages atomic.Int64
	)

	start := time.Now()
	for i := 0; i < *userCount; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			spamChat(n, &sent, &received, &messages)
		}(i)
	}

	wg.Wait()
	log.Printf("✅ LOAD TEST COMPLETE in %s: sent=%d frames_received=%d message_frames=%d",
		time.Since(start).Round(time.Millisecond), sent.Load(), received.Load(), messages.Load())
}

// spamChat opens one anonymous connection, posts msgCount messages and counts
// every frame the hub fans back out.
func spamChat(n int, sent, received, messages *atomic.Int64) {
	conn, _, err := websocket.DefaultDialer.Dial(*wsURL, nil)
	if err != nil {
		log.Printf("❌ WS Connect Fail [%d]: %v", n, err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received.Add(1)
			var f frame
			if json.Unmarshal(data, &f) == nil && f.Type == "message" {
				messages.Add(1)
			}
		}
	}()

	author := uuid.NewString()
	username := fmt.Sprintf("load_%d", n)
	for i := 0; i < *msgCount; i++ {
		post := map[string]string{
			"content":  fmt.Sprintf("LoadTest Msg %d from %s", i, username),
			"username": username,
			"userUUID": author,
		}
		if err := conn.WriteJSON(post); err != nil {
			log.Printf("❌ Send Fail [%s]: %v", username, err)
			break
		}
		sent.Add(1)
		// Small sleep to prevent instant localhost bottleneck (simulate real network)
		time.Sleep(*pause)
	}

	time.Sleep(*drain)
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.SetReadDeadline(time.Now().Add(time.Second))
	<-done
}
