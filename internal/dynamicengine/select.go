package dynamicengine

import (
	"context"
	"reflect"

	"github.com/streamkit/streamkit/internal/channel"
	"github.com/streamkit/streamkit/internal/packet"
)

// channelRecv is the boxed result of one channel.Channel.Recv call, used so
// it can travel through a reflect.Value in the dynamic select below.
type channelRecv struct {
	packet packet.Packet
	err    error
}

// inputSelector lets a node task block on however many input pins it
// declares, plus ctx cancellation, without hand-writing a select for every
// possible pin count. Each pin's channel.Channel (a blocking-call API, not
// itself a <-chan) is pumped into its own buffered Go channel so reflect
// can select across all of them uniformly.
type inputSelector struct {
	pins  []string // pins[i] == "" for the trailing ctx.Done() case
	cases []reflect.SelectCase
}

func newInputSelector(ctx context.Context, inputs map[string]*channel.Channel) *inputSelector {
	s := &inputSelector{
		pins:  make([]string, 0, len(inputs)+1),
		cases: make([]reflect.SelectCase, 0, len(inputs)+1),
	}
	for pin, ch := range inputs {
		resultCh := make(chan channelRecv, 1)
		go pumpChannel(ctx, ch, resultCh)
		s.pins = append(s.pins, pin)
		s.cases = append(s.cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(resultCh)})
	}
	s.pins = append(s.pins, "")
	s.cases = append(s.cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())})
	return s
}

// dropPin removes a pin's case once its upstream has signaled EndOfStream,
// so a future select no longer considers it.
func (s *inputSelector) dropPin(pin string) {
	for i, p := range s.pins {
		if p == pin {
			s.pins = append(s.pins[:i], s.pins[i+1:]...)
			s.cases = append(s.cases[:i], s.cases[i+1:]...)
			return
		}
	}
}

// recv blocks until one pin fires or ctx is done. done is true only when
// every input pin has been dropped or ctx.Done() fired.
func (s *inputSelector) recv() (pin string, rv channelRecv, done bool) {
	if len(s.cases) == 1 {
		return "", channelRecv{}, true // only the ctx.Done() case remains
	}
	chosen, value, _ := reflect.Select(s.cases)
	if s.pins[chosen] == "" {
		return "", channelRecv{}, true // ctx.Done()
	}
	return s.pins[chosen], value.Interface().(channelRecv), false
}

// pumpChannel repeatedly calls Recv and forwards each result, stopping once
// ctx is cancelled, the channel errors terminally, or the reader goes away.
func pumpChannel(ctx context.Context, ch *channel.Channel, out chan<- channelRecv) {
	for {
		p, err := ch.Recv()
		select {
		case out <- channelRecv{packet: p, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}
