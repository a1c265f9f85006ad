package credential

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubSink struct {
	got []string
	err error
}

func (s *stubSink) OnNewCredential(_ context.Context, credential string) error {
	s.got = append(s.got, credential)
	return s.err
}

func TestMultiDeliversToAllSinks(t *testing.T) {
	failing := &stubSink{err: errors.New("store down")}
	ok := &stubSink{}

	err := Multi{LogSink{}, failing, nil, ok}.OnNewCredential(context.Background(), "abc")

	assert.ErrorIs(t, err, failing.err)
	assert.Equal(t, []string{"abc"}, failing.got)
	assert.Equal(t, []string{"abc"}, ok.got)
}

func TestMultiNoErrors(t *testing.T) {
	assert.NoError(t, Multi{LogSink{}}.OnNewCredential(context.Background(), "abc"))
}
