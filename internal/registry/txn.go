package registry

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/medrex/record-registry/pkg/ledger"
	"github.com/medrex/record-registry/pkg/types"
)

type pendingEvent struct {
	name    string
	payload types.RegistryEvent
}

// txn buffers the writes of one operation over a ledger. Reads observe the
// operation's own writes. Nothing reaches the ledger until commit.
type txn struct {
	ledger ledger.Ledger
	writes map[string][]byte
	order  []string
	events []pendingEvent
}

func newTxn(l ledger.Ledger) *txn {
	return &txn{
		ledger: l,
		writes: make(map[string][]byte),
	}
}

func (t *txn) get(key string) ([]byte, error) {
	if value, ok := t.writes[key]; ok {
		return value, nil
	}
	value, err := t.ledger.GetState(key)
	if err != nil {
		return nil, types.NewInternalError("failed to read ledger state", err)
	}
	return value, nil
}

func (t *txn) put(key string, value []byte) {
	if _, ok := t.writes[key]; !ok {
		t.order = append(t.order, key)
	}
	t.writes[key] = value
}

// getJSON decodes the value at key into v and reports whether it existed.
func (t *txn) getJSON(key string, v interface{}) (bool, error) {
	raw, err := t.get(key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, types.NewInternalError("failed to decode ledger state", err)
	}
	return true, nil
}

func (t *txn) putJSON(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return types.NewInternalError("failed to encode ledger state", err)
	}
	t.put(key, raw)
	return nil
}

func (t *txn) exists(key string) (bool, error) {
	raw, err := t.get(key)
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

// getCounter reads a decimal counter. Absent counters are zero.
func (t *txn) getCounter(key string) (uint64, error) {
	raw, err := t.get(key)
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return 0, nil
	}
	n, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, types.NewInternalError(fmt.Sprintf("corrupt counter %q", key), err)
	}
	return n, nil
}

func (t *txn) putCounter(key string, n uint64) {
	t.put(key, []byte(strconv.FormatUint(n, 10)))
}

// appendIndex adds id as the next entry of the list stored under countKey
// and itemKey(n).
func (t *txn) appendIndex(countKey string, itemKey func(uint64) string, value string) error {
	n, err := t.getCounter(countKey)
	if err != nil {
		return err
	}
	t.put(itemKey(n), []byte(value))
	t.putCounter(countKey, n+1)
	return nil
}

// readIndex returns every entry of the list stored under countKey in
// insertion order. The result is never nil.
func (t *txn) readIndex(countKey string, itemKey func(uint64) string) ([]string, error) {
	n, err := t.getCounter(countKey)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		raw, err := t.get(itemKey(i))
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, types.NewInternalError(fmt.Sprintf("index entry %d missing under %q", i, countKey), nil)
		}
		out = append(out, string(raw))
	}
	return out, nil
}

func (t *txn) emit(name string, payload types.RegistryEvent) {
	t.events = append(t.events, pendingEvent{name: name, payload: payload})
}

// commit flushes buffered writes, atomically when the ledger supports
// batches, then publishes events.
func (t *txn) commit() error {
	if len(t.order) > 0 {
		if bw, ok := t.ledger.(ledger.BatchWriter); ok {
			writes := make([]ledger.Write, 0, len(t.order))
			for _, key := range t.order {
				writes = append(writes, ledger.Write{Key: key, Value: t.writes[key]})
			}
			if err := bw.WriteBatch(writes); err != nil {
				return types.NewInternalError("failed to commit ledger state", err)
			}
		} else {
			for _, key := range t.order {
				if err := t.ledger.PutState(key, t.writes[key]); err != nil {
					return types.NewInternalError("failed to write ledger state", err)
				}
			}
		}
	}

	emitter, ok := t.ledger.(ledger.EventEmitter)
	if !ok {
		return nil
	}
	for _, ev := range t.events {
		payload, err := json.Marshal(ev.payload)
		if err != nil {
			return types.NewInternalError("failed to encode event", err)
		}
		if err := emitter.SetEvent(ev.name, payload); err != nil {
			return types.NewInternalError("failed to emit event", err)
		}
	}
	return nil
}
