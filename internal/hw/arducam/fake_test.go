package arducam

import (
	"errors"
	"time"
)

var errBoom = errors.New("boom")

// txn is one recorded bus transaction.
type txn struct {
	bus  string // "spi" or "i2c"
	addr uint16
	w    []byte
	rlen int
}

// recorder backs both fake buses so tests can count transactions across
// them in issue order.
type recorder struct {
	txns   []txn
	failAt int // 1-based transaction index to fail, 0 = never
	// failBus limits failAt to one bus ("spi" or "i2c"); empty = any.
	failBus string
	busN    map[string]int
	failErr error

	regs   map[byte]byte // ArduChip register answers
	sensor map[byte]byte // OV2640 register answers
	fifo   []byte        // burst read payload
}

func newRecorder() *recorder {
	return &recorder{
		busN:   make(map[string]int),
		regs:   make(map[byte]byte),
		sensor: make(map[byte]byte),
	}
}

func (r *recorder) record(t txn) error {
	r.txns = append(r.txns, t)
	r.busN[t.bus]++
	n := len(r.txns)
	if r.failBus != "" {
		n = r.busN[t.bus]
		if t.bus != r.failBus {
			return nil
		}
	}
	if r.failAt != 0 && n == r.failAt {
		if r.failErr != nil {
			return r.failErr
		}
		return errBoom
	}
	return nil
}

func (r *recorder) count(bus string) int { return r.busN[bus] }

func (r *recorder) reset() {
	r.txns = nil
	r.busN = make(map[string]int)
}

type fakeRegs struct{ r *recorder }

func (f fakeRegs) Transact(w, rd []byte) error {
	if err := f.r.record(txn{bus: "spi", w: append([]byte(nil), w...), rlen: len(rd)}); err != nil {
		return err
	}
	if len(rd) == 0 {
		return nil
	}
	if w[0] == FIFOBurst {
		copy(rd, f.r.fifo)
		return nil
	}
	rd[0] = f.r.regs[w[0]]
	return nil
}

func (f fakeRegs) String() string { return "fake-spi" }

type fakeSensor struct{ r *recorder }

func (f fakeSensor) Tx(addr uint16, w, rd []byte) error {
	if err := f.r.record(txn{bus: "i2c", addr: addr, w: append([]byte(nil), w...), rlen: len(rd)}); err != nil {
		return err
	}
	if len(rd) > 0 {
		rd[0] = f.r.sensor[w[0]]
	}
	return nil
}

func (f fakeSensor) String() string { return "fake-i2c" }

type recordingDelayer struct {
	delays []time.Duration
}

func (d *recordingDelayer) Delay(dur time.Duration) {
	d.delays = append(d.delays, dur)
}

func newTestCamera(res Resolution) (*Camera, *recorder) {
	r := newRecorder()
	return New(fakeRegs{r}, fakeSensor{r}, res, JPEG), r
}
