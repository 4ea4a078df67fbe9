package clock

import "time"

// Clock は「現在時刻」の供給元。core の関数は now を引数で受け取り、
// 時計を読むのは Service の入口だけにする。
type Clock interface {
	Now() time.Time
}

type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Fixed always returns T. Used by tests and by the autooff CLI --at flag.
type Fixed struct{ T time.Time }

func (f *Fixed) Now() time.Time { return f.T }

func (f *Fixed) Advance(d time.Duration) { f.T = f.T.Add(d) }
