// Package admin builds the admin dashboard. The user list is mock data
// plus whoever is looking at it; there is no user database behind it.
package admin

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/MJE43/senipy/internal/auth"
	"github.com/MJE43/senipy/internal/feedback"
)

// User is a dashboard row.
type User struct {
	ID        int       `json:"id"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Email     string    `json:"email"`
	LastLogin time.Time `json:"last_login"`
	// Display fields.
	Name         string `json:"name"`
	LastLoginAgo string `json:"last_login_ago"`
	Current      bool   `json:"current,omitempty"`
}

// Downloads are the mock APK download counters.
type Downloads struct {
	Total         int    `json:"total"`
	ThisWeek      int    `json:"this_week"`
	TotalLabel    string `json:"total_label"`
	ThisWeekLabel string `json:"this_week_label"`
}

// Dashboard is everything the admin page shows.
type Dashboard struct {
	Users     []User              `json:"users"`
	Downloads Downloads           `json:"downloads"`
	Questions []feedback.Question `json:"questions"`
}

var mockUsers = []User{
	{ID: 1, FirstName: "John", LastName: "Doe", Email: "john@example.com", LastLogin: time.Date(2023, 4, 1, 10, 30, 0, 0, time.UTC)},
	{ID: 2, FirstName: "Jane", LastName: "Smith", Email: "jane@example.com", LastLogin: time.Date(2023, 4, 2, 14, 15, 0, 0, time.UTC)},
	{ID: 3, Email: "guest@example.com", LastLogin: time.Date(2023, 4, 3, 17, 45, 0, 0, time.UTC)},
}

const (
	mockDownloadsTotal = 12480
	mockDownloadsWeek  = 316
)

// Build assembles the dashboard for the signed-in viewer. Counters are
// formatted for tag.
func Build(viewer *auth.Identity, now time.Time, tag language.Tag) Dashboard {
	users := make([]User, 0, len(mockUsers)+1)
	users = append(users, mockUsers...)
	if viewer != nil && viewer.Email != "" {
		users = append(users, User{
			ID:        len(users) + 1,
			FirstName: viewer.FirstName,
			LastName:  viewer.LastName,
			Email:     viewer.Email,
			LastLogin: now,
			Current:   true,
		})
	}
	for i := range users {
		users[i].Name = DisplayName(users[i].FirstName, users[i].LastName)
		users[i].LastLoginAgo = humanize.RelTime(users[i].LastLogin, now, "ago", "from now")
	}

	p := message.NewPrinter(tag)
	return Dashboard{
		Users: users,
		Downloads: Downloads{
			Total:         mockDownloadsTotal,
			ThisWeek:      mockDownloadsWeek,
			TotalLabel:    p.Sprintf("%d", mockDownloadsTotal),
			ThisWeekLabel: p.Sprintf("%d", mockDownloadsWeek),
		},
		Questions: feedback.Questions,
	}
}

// DisplayName is "First Last", or "Guest User" unless both are set.
func DisplayName(first, last string) string {
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	if first == "" || last == "" {
		return "Guest User"
	}
	return first + " " + last
}
