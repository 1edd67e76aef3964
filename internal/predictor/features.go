package predictor

import (
	"math"
	"time"

	"github.com/langchou/parkgazer/internal/models"
)

// FeatureCount 特征向量维度
const FeatureCount = 12

// 特征下标
const (
	featHour = iota
	featDayOfWeek
	featMonth
	featIsWeekend
	featHasEvent
	featEventSports
	featEventAcademic
	featEventSpecial
	featHourSin
	featHourCos
	featDowSin
	featDowCos
)

// FeatureNames 特征名（与下标一一对应，用于特征重要度）
var FeatureNames = [FeatureCount]string{
	"hour",
	"day_of_week",
	"month",
	"is_weekend",
	"has_event",
	"event_sports",
	"event_academic",
	"event_special",
	"hour_sin",
	"hour_cos",
	"dow_sin",
	"dow_cos",
}

// Features 构建特征向量
// 周期特征用 sin/cos 编码，避免 23 点与 0 点在数值上相距甚远的断崖
func Features(t time.Time, events []*models.Event) []float64 {
	f := make([]float64, FeatureCount)

	hour := float64(t.Hour())
	dow := float64(t.Weekday())

	f[featHour] = hour
	f[featDayOfWeek] = dow
	f[featMonth] = float64(t.Month())
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		f[featIsWeekend] = 1
	}

	for _, ev := range events {
		if !ev.ActiveAt(t) {
			continue
		}
		f[featHasEvent] = 1
		switch ev.EventType {
		case models.EventSports:
			f[featEventSports] = 1
		case models.EventAcademic:
			f[featEventAcademic] = 1
		case models.EventSpecial:
			f[featEventSpecial] = 1
		}
	}

	hourRad := 2 * math.Pi * hour / 24
	f[featHourSin] = math.Sin(hourRad)
	f[featHourCos] = math.Cos(hourRad)

	dowRad := 2 * math.Pi * dow / 7
	f[featDowSin] = math.Sin(dowRad)
	f[featDowCos] = math.Cos(dowRad)

	return f
}
