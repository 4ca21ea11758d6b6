package records

import (
	"strings"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

type recordResponse struct {
	Msg recordMsg `json:"msg"`
}

type recordMsg struct {
	ID        uint64        `json:"id"`
	Content   recordContent `json:"content"`
	CreatedAt Timestamp     `json:"created_at"`
	UpdatedAt Timestamp     `json:"updated_at"`
	DomainID  uint64        `json:"domain_id"`
}

// recordContent is both the content of a read and the json payload of an
// update.
type recordContent struct {
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Type    string `json:"type"`
	Name    string `json:"name"`
}

type tokenQuery struct {
	Token string `url:"token"`
}

type updateQuery struct {
	Content string `url:"content"`
	Token   string `url:"token"`
}

// Timestamp decodes the API's "YYYY-MM-DD HH:MM:SS" dates.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	parsed, err := time.Parse(timestampLayout, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}
