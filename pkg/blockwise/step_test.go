// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package blockwise

import (
	"testing"
	"time"

	"github.com/hwkim3330/velocitydrivesp-support/pkg/coap"
)

func fixedMID(v uint16) func() uint16 { return func() uint16 { return v } }

func TestStepSmallPayloadSingleFrame(t *testing.T) {
	req := Request{Method: coap.PUT, URI: "/c/B", Payload: []byte("hello")}
	now := time.Unix(0, 0)
	cfg := Config{}

	st, action := Step(cfg, req, NewState(), now, fixedMID(1))
	if action.Frame == nil {
		t.Fatal("expected a frame to send")
	}
	if action.Frame.Block1 != nil {
		t.Errorf("small payload should not use Block1, got %+v", action.Frame.Block1)
	}
	if string(action.Frame.Payload) != "hello" {
		t.Errorf("payload = %q, want %q", action.Frame.Payload, "hello")
	}
	if st.Phase != PhaseSending {
		t.Errorf("phase = %v, want PhaseSending", st.Phase)
	}

	// Ack arrives with the full response.
	reply := &coap.Frame{Type: coap.ACK, Code: coap.Code{Class: 2, Detail: 4}, MessageID: 1}
	st = OnReply(st, reply)

	st, action = Step(cfg, req, st, now, fixedMID(2))
	if !action.Done || st.Phase != PhaseTerminal {
		t.Fatalf("expected terminal after full response, got phase=%v action=%+v", st.Phase, action)
	}
	if st.Outcome.Code != (coap.Code{Class: 2, Detail: 4}) {
		t.Errorf("outcome code = %v", st.Outcome.Code)
	}
}

func TestStepLargePayloadFragmentsIntoBlock1Chunks(t *testing.T) {
	payload := make([]byte, 600)
	for i := range payload {
		payload[i] = byte(i)
	}
	req := Request{Method: coap.POST, URI: "/c/x", Payload: payload}
	cfg := Config{BlockSize: 256}
	now := time.Unix(0, 0)

	st := NewState()
	var sentChunks [][]byte
	var blocks []coap.BlockOption
	mid := uint16(1)
	for i := 0; i < 10; i++ {
		var action Action
		st, action = Step(cfg, req, st, now, fixedMID(mid))
		if action.Frame == nil {
			t.Fatalf("round %d: expected a frame", i)
		}
		sentChunks = append(sentChunks, action.Frame.Payload)
		if action.Frame.Block1 == nil {
			t.Fatalf("round %d: expected Block1 option for a >256 byte payload", i)
		}
		blocks = append(blocks, *action.Frame.Block1)
		ack := &coap.Frame{Type: coap.ACK, Code: coap.Code{Class: 2, Detail: 31}, MessageID: mid}
		st = OnReply(st, ack)
		mid++
		if !action.Frame.Block1.More {
			break
		}
	}

	if len(sentChunks) != 3 {
		t.Fatalf("got %d chunks, want 3 (256+256+88)", len(sentChunks))
	}
	if len(sentChunks[0]) != 256 || len(sentChunks[1]) != 256 || len(sentChunks[2]) != 88 {
		t.Errorf("chunk lengths = %d, %d, %d", len(sentChunks[0]), len(sentChunks[1]), len(sentChunks[2]))
	}
	if blocks[0].More != true || blocks[1].More != true || blocks[2].More != false {
		t.Errorf("more flags = %v, %v, %v", blocks[0].More, blocks[1].More, blocks[2].More)
	}
	if blocks[0].Num != 0 || blocks[1].Num != 1 || blocks[2].Num != 2 {
		t.Errorf("block nums = %d, %d, %d", blocks[0].Num, blocks[1].Num, blocks[2].Num)
	}
}

func TestStepRetransmitsOnTimeoutThenGivesUp(t *testing.T) {
	req := Request{Method: coap.GET, URI: "/c/a"}
	cfg := Config{RetransmitInterval: time.Second, MaxRetries: 2}
	now := time.Unix(0, 0)

	st, action := Step(cfg, req, NewState(), now, fixedMID(7))
	firstFrame := action.Frame
	if firstFrame == nil {
		t.Fatal("expected initial frame")
	}

	for i := 0; i < 2; i++ {
		now = now.Add(2 * time.Second) // past the retransmit deadline
		st, action = Step(cfg, req, st, now, fixedMID(99))
		if action.Frame != firstFrame {
			t.Errorf("retry %d: expected retransmission of the same frame", i)
		}
		if st.Retry != i+1 {
			t.Errorf("retry %d: retry count = %d", i, st.Retry)
		}
	}

	now = now.Add(2 * time.Second)
	st, action = Step(cfg, req, st, now, fixedMID(99))
	if !action.Done || st.Phase != PhaseTerminal || st.Err == nil {
		t.Fatalf("expected retry-exhausted termination, got phase=%v err=%v", st.Phase, st.Err)
	}
}

func TestStepRequestsNextBlock2OnMore(t *testing.T) {
	req := Request{Method: coap.GET, URI: "/c/big"}
	cfg := Config{}
	now := time.Unix(0, 0)

	st, action := Step(cfg, req, NewState(), now, fixedMID(1))
	if action.Frame == nil {
		t.Fatal("expected initial frame")
	}

	reply := &coap.Frame{
		Type: coap.ACK, Code: coap.Code{Class: 2, Detail: 5}, MessageID: 1,
		Payload: []byte("part1"),
		Block2:  &coap.BlockOption{Num: 0, More: true, Size: 64},
	}
	st = OnReply(st, reply)

	st, action = Step(cfg, req, st, now, fixedMID(2))
	if action.Frame == nil || action.Frame.Block2 == nil {
		t.Fatal("expected a Block2-continuation frame")
	}
	if action.Frame.Block2.Num != 1 || action.Frame.Block2.More {
		t.Errorf("block2 = %+v, want num=1 more=false", action.Frame.Block2)
	}

	reply2 := &coap.Frame{
		Type: coap.ACK, Code: coap.Code{Class: 2, Detail: 5}, MessageID: 2,
		Payload: []byte("part2"),
	}
	st = OnReply(st, reply2)
	st, action = Step(cfg, req, st, now, fixedMID(3))
	if !action.Done || st.Phase != PhaseTerminal {
		t.Fatal("expected terminal after final block")
	}
	if string(st.Outcome.Payload) != "part1part2" {
		t.Errorf("reassembled payload = %q, want %q", st.Outcome.Payload, "part1part2")
	}
}

func TestStepTerminatesOnServerError(t *testing.T) {
	req := Request{Method: coap.GET, URI: "/c/missing"}
	cfg := Config{}
	now := time.Unix(0, 0)

	st, _ := Step(cfg, req, NewState(), now, fixedMID(1))
	errReply := &coap.Frame{Type: coap.ACK, Code: coap.Code{Class: 4, Detail: 4}, MessageID: 1}
	st = OnReply(st, errReply)

	if st.Phase != PhaseTerminal {
		t.Fatalf("expected immediate termination on 4.xx, got phase=%v", st.Phase)
	}
	if st.Outcome.Code != (coap.Code{Class: 4, Detail: 4}) {
		t.Errorf("outcome code = %v", st.Outcome.Code)
	}
}

func TestStepIgnoresMismatchedMessageID(t *testing.T) {
	req := Request{Method: coap.GET, URI: "/c/a"}
	cfg := Config{}
	now := time.Unix(0, 0)

	st, _ := Step(cfg, req, NewState(), now, fixedMID(5))
	stale := &coap.Frame{Type: coap.ACK, Code: coap.Code{Class: 2, Detail: 5}, MessageID: 999}
	got := OnReply(st, stale)
	if got.Phase != st.Phase || got.ReqTxAck != st.ReqTxAck || len(got.PayloadRx) != len(st.PayloadRx) {
		t.Error("state should be unchanged for a mismatched message id")
	}
}
