package kafka

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
)

func TestCreateChannel_RequiresBrokers(t *testing.T) {
	tests := []struct {
		name    string
		brokers []string
	}{
		{name: "nil", brokers: nil},
		{name: "empty_entry", brokers: []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub, sub, err := CreateChannel(watermill.NopLogger{}, tt.brokers, "cg-test")

			assert.ErrorIs(t, err, ErrNoBrokers)
			assert.Nil(t, pub)
			assert.Nil(t, sub)
		})
	}
}
