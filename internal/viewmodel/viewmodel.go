// Package viewmodel вычисляет статус подписки, фильтрует список подписчиков
// и считает сводку. Все функции чистые: результат зависит только от записей
// и переданного момента now, поэтому статус пересчитывается при каждом рендере.
package viewmodel

import (
	"math"
	"time"

	"github.com/magabrotheeeer/subscriber-desk/internal/models"
)

// EndingSoonDays — горизонт предупреждения о скором окончании, в днях.
const EndingSoonDays = 7

const day = 24 * time.Hour

// DaysUntil возвращает ceil((end - now) / 1 день).
func DaysUntil(end, now time.Time) int {
	return int(math.Ceil(float64(end.Sub(now)) / float64(day)))
}

// Classify вычисляет статус записи на момент now.
// Expired и Active взаимоисключающие, EndingSoon бывает только у активной записи.
func Classify(sub models.Subscriber, now time.Time) models.Status {
	end := sub.EndDate.Time
	expired := end.Before(now)
	days := DaysUntil(end, now)

	return models.Status{
		Active:     !expired,
		Expired:    expired,
		EndingSoon: !expired && days > 0 && days <= EndingSoonDays,
	}
}

// ParseFilter разбирает режим фильтра. Пустая строка означает FilterAll.
func ParseFilter(s string) (models.FilterMode, bool) {
	switch models.FilterMode(s) {
	case "", models.FilterAll:
		return models.FilterAll, true
	case models.FilterActive:
		return models.FilterActive, true
	case models.FilterExpired:
		return models.FilterExpired, true
	default:
		return models.FilterAll, false
	}
}

// Filter отбирает записи по режиму, сохраняя исходный порядок.
// Неизвестный режим ведёт себя как FilterAll.
func Filter(subs []models.Subscriber, mode models.FilterMode, now time.Time) []models.Subscriber {
	result := make([]models.Subscriber, 0, len(subs))
	for _, sub := range subs {
		switch mode {
		case models.FilterActive:
			if Classify(sub, now).Expired {
				continue
			}
		case models.FilterExpired:
			if !Classify(sub, now).Expired {
				continue
			}
		}
		result = append(result, sub)
	}
	return result
}

// Summarize считает количество и сумму по всему набору, без учёта фильтра.
func Summarize(subs []models.Subscriber) models.Summary {
	var total float64
	for _, sub := range subs {
		total += sub.Amount
	}
	return models.Summary{
		Count:       len(subs),
		TotalAmount: total,
	}
}

// Card — запись вместе с вычисленным статусом для отображения.
type Card struct {
	models.Subscriber
	Status   models.Status `json:"status"`
	DaysLeft int           `json:"days_left"`
}

// View — всё, что нужно для отрисовки списка: карточки по фильтру и сводка по полному набору.
type View struct {
	Filter  models.FilterMode `json:"filter"`
	Cards   []Card            `json:"subscribers"`
	Summary models.Summary    `json:"summary"`
}

// Build собирает View для режима mode на момент now.
func Build(subs []models.Subscriber, mode models.FilterMode, now time.Time) View {
	filtered := Filter(subs, mode, now)
	cards := make([]Card, 0, len(filtered))
	for _, sub := range filtered {
		cards = append(cards, Card{
			Subscriber: sub,
			Status:     Classify(sub, now),
			DaysLeft:   DaysUntil(sub.EndDate.Time, now),
		})
	}
	return View{
		Filter:  mode,
		Cards:   cards,
		Summary: Summarize(subs),
	}
}

// StatusCounts считает записи по статусам на момент now.
func StatusCounts(subs []models.Subscriber, now time.Time) (active, expired, endingSoon int) {
	for _, sub := range subs {
		st := Classify(sub, now)
		if st.Expired {
			expired++
			continue
		}
		active++
		if st.EndingSoon {
			endingSoon++
		}
	}
	return active, expired, endingSoon
}
