package host

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ja7ad/rectask/pkg/types"
)

func TestInfo_Constrain(t *testing.T) {
	base := Info{CoreCount: 8, TotalRAM: types.Bytes(16 << 30)}

	t.Run("no_limits", func(t *testing.T) {
		assert.Equal(t, base, base.Constrain(0, 0))
	})
	t.Run("fractional_quota_rounds_up", func(t *testing.T) {
		got := base.Constrain(1.5, 0)
		assert.Equal(t, 2, got.CoreCount)
		assert.Equal(t, base.TotalRAM, got.TotalRAM)
	})
	t.Run("quota_above_host_is_ignored", func(t *testing.T) {
		assert.Equal(t, 8, base.Constrain(32, 0).CoreCount)
	})
	t.Run("memory_limit", func(t *testing.T) {
		got := base.Constrain(0, types.Bytes(2<<30))
		assert.InDelta(t, 2.0, got.RAMGB(), 1e-12)
	})
}
