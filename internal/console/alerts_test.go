package console_test

import (
	"context"
	"testing"

	"github.com/lllypuk/avatarconsole/internal/console"
	"github.com/stretchr/testify/assert"
)

func TestAlertQueue(t *testing.T) {
	q := console.NewAlertQueue()
	ctx := context.Background()

	q.Alert(ctx, console.Alert{Level: console.AlertWarning, Text: "first"})
	q.Alert(ctx, console.Alert{Level: console.AlertInfo, Text: "second"})

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, []console.Alert{
		{Level: console.AlertWarning, Text: "first"},
		{Level: console.AlertInfo, Text: "second"},
	}, q.Drain())
	assert.Zero(t, q.Len())
	assert.Empty(t, q.Drain())
}

func TestNopAlerter(_ *testing.T) {
	console.NopAlerter{}.Alert(context.Background(), console.Alert{Text: "dropped"})
}
