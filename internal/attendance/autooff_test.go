package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var pkt = time.FixedZone("PKT", 5*3600)

func at(h, m int) time.Time {
	return time.Date(2025, 6, 10, h, m, 0, 0, pkt)
}

func TestStateFromFields(t *testing.T) {
	out := at(17, 0)
	assert.Equal(t, StateOpen, Record{InTime: at(9, 0)}.State())
	assert.Equal(t, StateClosed, Record{InTime: at(9, 0), OutTime: &out}.State())
	assert.Equal(t, StateAutoClosed, Record{InTime: at(9, 0), OutTime: &out, AutoOff: true}.State())
}

func TestResolveOutTimeIsMonotonic(t *testing.T) {
	p := DefaultPolicy()
	r := Record{InTime: at(9, 0)}

	prev := p.ResolveOutTime(r, at(8, 0))
	assert.True(t, prev.Equal(r.InTime), "before inTime clamps to inTime")

	for now := at(8, 0); now.Before(at(9, 0).Add(30 * time.Hour)); now = now.Add(17 * time.Minute) {
		got := p.ResolveOutTime(r, now)
		assert.False(t, got.Before(prev), "now=%s", now)
		assert.False(t, got.After(now) && now.After(r.InTime), "never later than now")
		prev = got
	}
	assert.True(t, prev.Equal(at(21, 0)))
}

func TestResolveOutTimePrefersStoredOut(t *testing.T) {
	p := DefaultPolicy()
	out := at(17, 5)
	r := Record{InTime: at(9, 0), OutTime: &out}
	assert.True(t, p.ResolveOutTime(r, at(23, 0)).Equal(out))
	assert.EqualValues(t, 8*3600+5*60, p.DutySeconds(r, at(23, 0)))
}

func TestDue(t *testing.T) {
	p := Policy{MaxDuty: 12 * time.Hour}
	r := Record{InTime: at(9, 0)}

	_, due := p.Due(r, at(21, 0))
	assert.False(t, due, "exactly at the cap is not overdue")

	closeAt, due := p.Due(r, at(21, 0).Add(time.Second))
	assert.True(t, due)
	assert.True(t, closeAt.Equal(at(21, 0)))

	closeAt2, _ := p.Due(r, at(23, 0))
	assert.True(t, closeAt2.Equal(closeAt), "closing instant does not depend on now")

	out := at(17, 0)
	_, due = p.Due(Record{InTime: at(9, 0), OutTime: &out}, at(23, 0))
	assert.False(t, due)
}
