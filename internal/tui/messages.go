package tui

import (
	"time"

	"github.com/leapstack-labs/leapadmin/internal/api"
	"github.com/leapstack-labs/leapadmin/internal/browser"
)

// Messages for async operations

// catalogLoadedMsg is sent when the table catalog request completes.
type catalogLoadedMsg struct {
	Catalog browser.Catalog
}

// pageLoadedMsg carries a page fetch outcome. The embedded request
// sequence lets the controller drop stale replies.
type pageLoadedMsg struct {
	Response browser.Response
}

// healthMsg is sent when a health check completes.
type healthMsg struct {
	Health api.Health
	Error  error
}

// healthTickMsg schedules the next health check.
type healthTickMsg time.Time
