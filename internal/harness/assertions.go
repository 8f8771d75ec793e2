package harness

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/starrybamboo/chatsync/internal/replica"
)

// evaluate checks one assertion against the final state.
func (h *Harness) evaluate(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertQueueLen:
		return h.assertQueueLen(ctx, a)
	case AssertRemoteState:
		state, _, err := h.remoteState(ctx)
		if err != nil {
			return err
		}
		return compareState("remote", a.Expect, state)
	case AssertRemoteVersion:
		_, version, err := h.remoteState(ctx)
		if err != nil {
			return err
		}
		if version != a.Version {
			return fmt.Errorf("remote version %d, expected %d", version, a.Version)
		}
		return nil
	case AssertPeerState:
		return compareState(a.Peer, a.Expect, h.peers[a.Peer].doc.State())
	case AssertConverged:
		return h.assertConverged(ctx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func (h *Harness) assertQueueLen(ctx context.Context, a Assertion) error {
	n, err := h.peers[a.Peer].engine.Pending(ctx, h.docKey)
	if err != nil {
		return err
	}
	if n != a.Count {
		return fmt.Errorf("peer %s has %d queued updates, expected %d", a.Peer, n, a.Count)
	}
	return nil
}

// assertConverged requires every peer's Doc to encode byte-identically to
// the remote full update.
func (h *Harness) assertConverged(ctx context.Context) error {
	res := h.remote.Fetch(ctx, h.docKey)
	if res.Status != replica.FetchFound {
		return fmt.Errorf("remote has no snapshot (%s)", res.Status)
	}

	names := make([]string, 0, len(h.peers))
	for name := range h.peers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		encoded, err := h.peers[name].doc.Encode()
		if err != nil {
			return fmt.Errorf("peer %s: %w", name, err)
		}
		if !bytes.Equal(encoded, res.Snapshot.Update) {
			return fmt.Errorf("peer %s diverges from remote:\n  peer:   %s\n  remote: %s", name, encoded, res.Snapshot.Update)
		}
	}
	return nil
}

func compareState(who string, expect, actual map[string]string) error {
	if expect == nil {
		expect = map[string]string{}
	}
	if !reflect.DeepEqual(expect, actual) {
		return fmt.Errorf("%s state %v, expected %v", who, actual, expect)
	}
	return nil
}
