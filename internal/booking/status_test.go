package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/traverum/booking-service/internal/model"
)

var allStatuses = []model.Status{
	model.StatusPending,
	model.StatusConfirmed,
	model.StatusDeclined,
	model.StatusPendingPayment,
	model.StatusCompleted,
	model.StatusCancelled,
}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]model.Status]bool{
		{model.StatusPending, model.StatusConfirmed}:          true,
		{model.StatusPending, model.StatusDeclined}:           true,
		{model.StatusPending, model.StatusCancelled}:          true,
		{model.StatusConfirmed, model.StatusPendingPayment}:   true,
		{model.StatusConfirmed, model.StatusCancelled}:        true,
		{model.StatusPendingPayment, model.StatusCompleted}:   true,
		{model.StatusPendingPayment, model.StatusCancelled}:   true,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			assert.Equal(t, allowed[[2]model.Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, s := range allStatuses {
		if !IsTerminal(s) {
			continue
		}
		for _, to := range allStatuses {
			assert.False(t, CanTransition(s, to), "%s -> %s", s, to)
		}
	}
	assert.True(t, IsTerminal(model.StatusCompleted))
	assert.False(t, IsTerminal(model.StatusPendingPayment))
	assert.True(t, Valid(model.StatusDeclined))
	assert.False(t, Valid(model.Status("archived")))
}
