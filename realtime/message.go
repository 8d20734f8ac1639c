package realtime

import (
	"encoding/json"
	"time"
)

// Phoenix 协议事件
const (
	eventJoin      = "phx_join"
	eventReply     = "phx_reply"
	eventError     = "phx_error"
	eventClose     = "phx_close"
	eventHeartbeat = "heartbeat"
	eventChanges   = "postgres_changes"

	topicPhoenix = "phoenix"
)

// 行变更类型
const (
	Insert = "INSERT"
	Update = "UPDATE"
	Delete = "DELETE"
)

type message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

// Change 一次行变更
type Change struct {
	Schema          string         `json:"schema"`
	Table           string         `json:"table"`
	Type            string         `json:"type"`
	Record          map[string]any `json:"record,omitempty"`
	OldRecord       map[string]any `json:"old_record,omitempty"`
	CommitTimestamp time.Time      `json:"commit_timestamp"`
}

type joinPayload struct {
	Config      joinConfig `json:"config"`
	AccessToken string     `json:"access_token,omitempty"`
}

type joinConfig struct {
	PostgresChanges []changeFilter `json:"postgres_changes"`
}

type changeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

// decodeChange 兼容两种负载：postgres_changes 的 data 包装和旧版直接负载
func decodeChange(m message) (Change, bool) {
	var c Change
	switch m.Event {
	case eventChanges:
		var p struct {
			Data Change `json:"data"`
		}
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return c, false
		}
		c = p.Data
	case Insert, Update, Delete:
		if err := json.Unmarshal(m.Payload, &c); err != nil {
			return c, false
		}
		if c.Type == "" {
			c.Type = m.Event
		}
	default:
		return c, false
	}
	return c, c.Table != ""
}

func topicFor(schema, table string) string {
	return "realtime:" + schema + ":" + table
}
