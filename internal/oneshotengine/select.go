package oneshotengine

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
// possible pin count. Mirrors dynamicengine's selector: each pin's
// channel.Channel is pumped into its own buffered Go channel so reflect can
// select across all of them uniformly. Kept as its own copy rather than an
// exported shared helper because the two engines' failure semantics differ
// at the call site (dynamicengine.runNodeTask never fails the task;
// oneshotengine.runNodeTask does) and the selector itself carries no state
// worth sharing beyond this ~60 lines.
type inputSelector struct {
	pins  []string
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

func (s *inputSelector) dropPin(pin string) {
	for i, p := range s.pins {
		if p == pin {
			s.pins = append(s.pins[:i], s.pins[i+1:]...)
			s.cases = append(s.cases[:i], s.cases[i+1:]...)
			return
		}
	}
}

func (s *inputSelector) recv() (pin string, rv channelRecv, done bool) {
	if len(s.cases) == 1 {
		return "", channelRecv{}, true
	}
	chosen, value, _ := reflect.Select(s.cases)
	if s.pins[chosen] == "" {
		return "", channelRecv{}, true
	}
	return s.pins[chosen], value.Interface().(channelRecv), false
}

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
