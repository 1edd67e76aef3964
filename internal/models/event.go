package models

import "time"

// EventType 校园活动类型
type EventType string

const (
	EventSports   EventType = "sports"
	EventAcademic EventType = "academic"
	EventSpecial  EventType = "special"
)

// Valid 是否已知活动类型
func (t EventType) Valid() bool {
	switch t {
	case EventSports, EventAcademic, EventSpecial:
		return true
	}
	return false
}

// Event 校园活动（影响周边停车场占用，参与训练特征）
type Event struct {
	ID        int64     `json:"id" db:"id"`
	LotID     string    `json:"lot_id" db:"lot_id"`
	Name      string    `json:"name" db:"name"`
	EventType EventType `json:"event_type" db:"event_type"`
	StartTime time.Time `json:"start_time" db:"start_time"`
	EndTime   time.Time `json:"end_time" db:"end_time"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ActiveAt 活动在指定时刻是否进行中
func (e *Event) ActiveAt(t time.Time) bool {
	return !t.Before(e.StartTime) && !t.After(e.EndTime)
}
