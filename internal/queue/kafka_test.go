package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRun_CommitsUnlessRetry(t *testing.T) {
	src := newChanSource()
	for offset := int64(1); offset <= 3; offset++ {
		src.msgs <- kafka.Message{Offset: offset}
	}

	handle := func(ctx context.Context, msg kafka.Message) error {
		switch msg.Offset {
		case 2:
			return fmt.Errorf("%w: smtp down", ErrRetry)
		case 3:
			return errors.New("undecodable")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		Run(ctx, src, handle, zap.NewNop())
	}()

	assert.Eventually(t, func() bool { return len(src.Committed()) == 2 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []int64{1, 3}, src.Committed())
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		Run(ctx, newChanSource(), func(context.Context, kafka.Message) error { return nil }, zap.NewNop())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTentKey(t *testing.T) {
	assert.Equal(t, "42", TentKey(42))
}
