package signals

import (
	"context"
	"time"
	"unicode"
)

// Stream highlights one key per character of the text it is fed.
type Stream struct {
	session *Session
	delay   time.Duration
}

type StreamOption func(*Stream)

// WithDelay pauses before every character. Negative delays count as zero.
func WithDelay(delay time.Duration) StreamOption {
	return func(st *Stream) {
		if delay < 0 {
			delay = 0
		}
		st.delay = delay
	}
}

func WithSession(session *Session) StreamOption {
	return func(st *Stream) {
		st.session = session
	}
}

// NewStream returns a stream owning a fresh session that keeps its signals on
// close, unless WithSession is given.
func NewStream(opts ...StreamOption) *Stream {
	st := &Stream{}
	for _, opt := range opts {
		opt(st)
	}
	if st.session == nil {
		st.session = NewSession(DeleteOnExit(false))
	}
	return st
}

func (st *Stream) Session() *Session    { return st.session }
func (st *Stream) Delay() time.Duration { return st.delay }

// Feed upper-cases text and publishes a signal on KEY_<c> for each character
// c, in order. Characters without a key are sent as they are. The delay is a
// plain sleep; ctx only bounds the requests.
func (st *Stream) Feed(ctx context.Context, text string) error {
	_, err := st.feed(ctx, text)
	return err
}

// feed returns how many bytes of text were published before an error.
func (st *Stream) feed(ctx context.Context, text string) (int, error) {
	for i, r := range text {
		time.Sleep(st.delay)
		if _, err := st.session.Signal().ForZone(KeyZone(unicode.ToUpper(r))).Finalize(ctx); err != nil {
			return i, err
		}
	}
	return len(text), nil
}

// Write feeds p as text, so a Stream can be used with fmt.Fprint and friends.
// On error n counts the bytes of p whose characters were already published.
func (st *Stream) Write(p []byte) (int, error) {
	return st.feed(context.Background(), string(p))
}

func (st *Stream) WriteString(s string) (int, error) {
	return st.feed(context.Background(), s)
}
