package i2c

import (
	"bytes"
	"errors"
	"testing"
)

func TestFakeBusReplies(t *testing.T) {
	o := NewFakeOpener()
	fb := o.Bus(1)
	fb.Replies[0x50] = []byte{1, 2, 3}
	fb.SetReply(0x50, 0x10, []byte{9, 8})

	b, err := o.Open(1)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	buf := make([]byte, 3)
	if err := b.Read(0x50, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(buf, []byte{1, 2, 3}) {
		t.Errorf("raw read: got %v", buf)
	}

	buf = make([]byte, 2)
	if err := b.ReadReg(0x50, 0x10, buf); err != nil {
		t.Fatalf("read reg: %v", err)
	}
	if !bytes.Equal(buf, []byte{9, 8}) {
		t.Errorf("reg read: got %v", buf)
	}

	v, err := b.ReadByteReg(0x50, 0x10)
	if err != nil || v != 9 {
		t.Errorf("byte reg read: got %d, %v", v, err)
	}

	txs := fb.Transactions()
	if len(txs) != 3 {
		t.Fatalf("transactions: got %d, want 3", len(txs))
	}
	if txs[0].HasReg || !txs[1].HasReg || txs[1].Reg != 0x10 {
		t.Errorf("unexpected transactions: %+v", txs)
	}
}

func TestFakeBusWrites(t *testing.T) {
	o := NewFakeOpener()
	b, _ := o.Open(2)

	b.Write(0x20, []byte{0x01, 0xFF})
	b.WriteByteReg(0x20, 0x03, 0x0F)

	txs := o.Buses[2].Transactions()
	if !bytes.Equal(txs[0].Write, []byte{0x01, 0xFF}) {
		t.Errorf("write: got %v", txs[0].Write)
	}
	if txs[1].Reg != 0x03 || !bytes.Equal(txs[1].Write, []byte{0x0F}) {
		t.Errorf("byte reg write: got %+v", txs[1])
	}
}

func TestFakeBusError(t *testing.T) {
	o := NewFakeOpener()
	b, _ := o.Open(1)
	o.Buses[1].SetErr(errors.New("nack"))

	if err := b.Write(0x20, []byte{1}); err == nil {
		t.Error("expected scripted error")
	}
}

func TestFakeOpenerCountsAndMissing(t *testing.T) {
	o := NewFakeOpener()
	o.Missing[3] = true

	o.Open(1)
	o.Open(1)
	if o.OpenCount(1) != 2 {
		t.Errorf("open count: got %d, want 2", o.OpenCount(1))
	}
	if _, err := o.Open(3); err == nil {
		t.Error("expected error opening missing bus")
	}
}
