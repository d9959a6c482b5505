package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds the login response padding settings
type TimingConfig struct {
	BaseDelayMs    int  // minimum padded duration in milliseconds
	RandomDelayMs  int  // upper bound of the random jitter added to the base
	DelayOnSuccess bool // pad successful logins too
}

// TimingDelay pads login responses so an unknown email, a wrong password and a
// locked account are indistinguishable by latency
type TimingDelay struct {
	config TimingConfig
	sleep  func(time.Duration)
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		config: config,
		sleep:  time.Sleep,
	}
}

// NoDelay returns a TimingDelay that never sleeps
func NoDelay() *TimingDelay {
	return NewTimingDelay(TimingConfig{})
}

// cryptoRandIntn returns a number in [0, max) drawn from crypto/rand
func cryptoRandIntn(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}

	return int(binary.BigEndian.Uint64(buf[:]) % uint64(max)), nil
}

func (td *TimingDelay) target() time.Duration {
	delay := time.Duration(td.config.BaseDelayMs) * time.Millisecond
	if td.config.RandomDelayMs > 0 {
		if jitter, err := cryptoRandIntn(td.config.RandomDelayMs); err == nil {
			delay += time.Duration(jitter) * time.Millisecond
		}
	}
	return delay
}

func (td *TimingDelay) skip(success bool) bool {
	return td == nil || (success && !td.config.DelayOnSuccess)
}

// WaitFrom sleeps until at least base + jitter has elapsed since start
func (td *TimingDelay) WaitFrom(start time.Time, success bool) {
	if td.skip(success) {
		return
	}

	if remaining := td.target() - time.Since(start); remaining > 0 {
		td.sleep(remaining)
	}
}
