package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestURLService_computeExpiry(t *testing.T) {
	svc, _ := setupURLService(t)

	t.Run("negative validity", func(t *testing.T) {
		expiry, err := svc.computeExpiry(fixedNow, -1)

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidValidity)
		assert.Zero(t, expiry)
	})

	t.Run("omitted validity uses the default", func(t *testing.T) {
		expiry, err := svc.computeExpiry(fixedNow, 0)

		assert.NoError(t, err)
		assert.Equal(t, fixedNow.Add(30*time.Minute), expiry)
	})

	t.Run("explicit validity", func(t *testing.T) {
		expiry, err := svc.computeExpiry(fixedNow, 1)

		assert.NoError(t, err)
		assert.Equal(t, fixedNow.Add(time.Minute), expiry)
		assert.True(t, expiry.After(fixedNow))
	})
}
