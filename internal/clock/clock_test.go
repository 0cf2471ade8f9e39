package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_NowAndAdvance(t *testing.T) {
	f := NewFake(epoch)
	assert.Equal(t, epoch, f.Now())

	f.Advance(90 * time.Second)
	assert.Equal(t, epoch.Add(90*time.Second), f.Now())

	f.Set(epoch)
	assert.Equal(t, epoch, f.Now())
}

func TestFake_TickerFiresOnDeadline(t *testing.T) {
	f := NewFake(epoch)
	tk := f.NewTicker(time.Minute)
	require.Equal(t, 1, f.TickerCount())

	f.Advance(30 * time.Second)
	select {
	case <-tk.C():
		t.Fatal("ticker fired early")
	default:
	}

	f.Advance(30 * time.Second)
	select {
	case got := <-tk.C():
		assert.Equal(t, epoch.Add(time.Minute), got)
	default:
		t.Fatal("ticker did not fire")
	}

	tk.Stop()
	assert.Equal(t, 0, f.TickerCount())
}

func TestFake_TickerDropsMissedTicks(t *testing.T) {
	f := NewFake(epoch)
	tk := f.NewTicker(time.Second)

	f.Advance(10 * time.Second)
	f.Advance(time.Second)

	<-tk.C()
	select {
	case <-tk.C():
		t.Fatal("only one tick should be buffered")
	default:
	}
}

func TestReal(t *testing.T) {
	c := Real()
	before := time.Now()
	assert.False(t, c.Now().Before(before))

	tk := c.NewTicker(time.Millisecond)
	defer tk.Stop()
	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("real ticker did not fire")
	}
}
