package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendQuery(t *testing.T) {
	query, args, err := appendQuery(NewMessage{
		Username:   "bob",
		Content:    "hi",
		Type:       TypeChat,
		Color:      DefaultColor,
		AuthorUUID: "u1",
	}).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO chat_messages (username,content,message_type,message_color,user_uuid) VALUES ($1,$2,$3,$4,$5) "+
			"RETURNING id, username, content, created_at, message_type, message_color, user_uuid",
		query)
	assert.Equal(t, []any{"bob", "hi", TypeChat, DefaultColor, "u1"}, args)
}

func TestAppendQuery_EmptyAuthorIsNull(t *testing.T) {
	_, args, err := appendQuery(NewMessage{Username: "bridge", Content: "hi", Type: TypeDiscord, Color: DefaultColor}).ToSql()
	require.NoError(t, err)
	require.Len(t, args, 5)
	assert.Nil(t, args[4])
}

func TestHistoryQuery(t *testing.T) {
	query, args, err := historyQuery(50).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, username, content, created_at, message_type, message_color, user_uuid FROM chat_messages ORDER BY id DESC LIMIT 50",
		query)
	assert.Empty(t, args)
}

func TestDeleteQuery(t *testing.T) {
	query, args, err := deleteQuery(42).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "DELETE FROM chat_messages WHERE id = $1", query)
	assert.Equal(t, []any{int64(42)}, args)
}

func TestRenameQuery_SkipsDiscordRows(t *testing.T) {
	query, args, err := renameQuery("u1", "Renamed").ToSql()
	require.NoError(t, err)

	assert.Equal(t, "UPDATE chat_messages SET username = $1 WHERE user_uuid = $2 AND message_type <> $3", query)
	assert.Equal(t, []any{"Renamed", "u1", TypeDiscord}, args)
}

func TestStatsQuery_ExcludesAdminSentinel(t *testing.T) {
	query, args, err := statsQuery().ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT COUNT(*) AS total_messages, COUNT(DISTINCT user_uuid) FILTER (WHERE user_uuid <> $1) AS unique_posters FROM chat_messages",
		query)
	assert.Equal(t, []any{AdminUUID}, args)
}
