package dispensing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLotAllocationStore(t *testing.T) {
	key := TrackingKey(42)

	t.Run("set replaces the whole list", func(t *testing.T) {
		s := NewLotAllocationStore()
		require.NoError(t, s.SetLots(key, []SelectedLot{lot(1, "3"), lot(2, "7")}))
		assert.True(t, s.TotalFor(key).Equal(dec("10")))

		require.NoError(t, s.SetLots(key, []SelectedLot{lot(3, "1.5")}))
		assert.True(t, s.TotalFor(key).Equal(dec("1.5")))
		assert.Len(t, s.Lots(key), 1)
	})

	t.Run("remove drops one lot", func(t *testing.T) {
		s := NewLotAllocationStore()
		require.NoError(t, s.SetLots(key, []SelectedLot{lot(1, "3"), lot(2, "7")}))

		assert.True(t, s.RemoveLot(key, 1))
		assert.True(t, s.TotalFor(key).Equal(dec("7")))
		assert.False(t, s.RemoveLot(key, 1))
	})

	t.Run("removing the last lot clears the key", func(t *testing.T) {
		s := NewLotAllocationStore()
		require.NoError(t, s.SetLots(key, []SelectedLot{lot(1, "3")}))

		assert.True(t, s.RemoveLot(key, 1))
		assert.Empty(t, s.Keys())
		assert.True(t, s.TotalFor(key).IsZero())
	})

	t.Run("keys keep insertion order", func(t *testing.T) {
		s := NewLotAllocationStore()
		require.NoError(t, s.SetLots(MaterialKey("B"), []SelectedLot{lot(1, "1")}))
		require.NoError(t, s.SetLots(MaterialKey("A"), []SelectedLot{lot(2, "1")}))
		require.NoError(t, s.SetLots(MaterialKey("B"), []SelectedLot{lot(3, "1")}))

		assert.Equal(t, []AllocationKey{MaterialKey("B"), MaterialKey("A")}, s.Keys())
	})

	t.Run("rejects the no-lot sentinel", func(t *testing.T) {
		s := NewLotAllocationStore()
		err := s.SetLots(key, []SelectedLot{lot(0, "1")})
		assert.True(t, errors.Is(err, ErrInvalidLot))
		assert.Zero(t, s.Len())
	})

	t.Run("rejects non-positive and duplicate lots", func(t *testing.T) {
		s := NewLotAllocationStore()
		assert.ErrorIs(t, s.SetLots(key, []SelectedLot{lot(1, "0")}), ErrInvalidLot)
		assert.ErrorIs(t, s.SetLots(key, []SelectedLot{lot(1, "1"), lot(1, "2")}), ErrInvalidLot)
	})

	t.Run("returned lots are copies", func(t *testing.T) {
		s := NewLotAllocationStore()
		lots := []SelectedLot{lot(1, "3")}
		require.NoError(t, s.SetLots(key, lots))
		lots[0].Quantity = dec("100")

		got := s.Lots(key)
		got[0].Quantity = dec("200")
		assert.True(t, s.TotalFor(key).Equal(dec("3")))
	})

	t.Run("reset clears everything", func(t *testing.T) {
		s := NewLotAllocationStore()
		require.NoError(t, s.SetLots(key, []SelectedLot{lot(1, "3")}))
		s.Reset()
		assert.Zero(t, s.Len())
	})

	t.Run("revision moves on every mutation", func(t *testing.T) {
		s := NewLotAllocationStore()
		rev := s.Revision()

		require.NoError(t, s.SetLots(key, []SelectedLot{lot(1, "3"), lot(2, "1")}))
		assert.Greater(t, s.Revision(), rev)
		rev = s.Revision()

		assert.False(t, s.RemoveLot(key, 9))
		require.NoError(t, s.SetLots(MaterialKey("NONE"), nil))
		assert.Equal(t, rev, s.Revision(), "no-op calls keep the revision")

		assert.True(t, s.RemoveLot(key, 1))
		assert.Greater(t, s.Revision(), rev)
		rev = s.Revision()

		assert.True(t, s.RemoveLot(key, 2))
		assert.Greater(t, s.Revision(), rev)
		rev = s.Revision()

		s.Reset()
		assert.Greater(t, s.Revision(), rev)
	})
}

func TestAllocationKey(t *testing.T) {
	t.Run("tracking key round trip", func(t *testing.T) {
		k, err := ParseAllocationKey("insumo-42")
		require.NoError(t, err)
		id, ok := k.TrackingRecord()
		assert.True(t, ok)
		assert.Equal(t, int64(42), id)
	})

	t.Run("material and packaging keys", func(t *testing.T) {
		id, ok := MaterialKey("SUGAR").MaterialID()
		assert.True(t, ok)
		assert.Equal(t, "SUGAR", id)
		assert.False(t, MaterialKey("SUGAR").IsPackaging())
		assert.True(t, PackagingKey("BOX-001").IsPackaging())
		assert.NotEqual(t, MaterialKey("BOX-001"), PackagingKey("BOX-001"))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		for _, raw := range []string{"", "insumo-", "insumo-abc", "insumo-0", "producto-", "lote-1"} {
			_, err := ParseAllocationKey(raw)
			assert.ErrorIs(t, err, ErrInvalidAllocationKey, raw)
		}
	})
}

func TestAggregateHistorical(t *testing.T) {
	totals := AggregateHistorical([]HistoricalDispensationLine{
		{MaterialID: "SUGAR", Quantity: dec("-5")},
		{MaterialID: "SUGAR", Quantity: dec("2.5")},
		{MaterialID: "CITRIC", Quantity: dec("1")},
	})

	assert.True(t, totals.For("SUGAR").Equal(dec("7.5")))
	assert.True(t, totals.For("CITRIC").Equal(dec("1")))
	assert.True(t, totals.For("WATER").IsZero())
}
