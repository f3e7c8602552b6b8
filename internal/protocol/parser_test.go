package protocol

import (
	"testing"

	"github.com/coreware-labs/partcache/internal/iobuf"
)

func parse(t *testing.T, s string) (*Command, Status) {
	t.Helper()
	buf := iobuf.New()
	buf.Append([]byte(s))
	cur := iobuf.NewCursor(buf)
	return Parse(cur)
}

func TestParseGetSingleKey(t *testing.T) {
	cmd, status := parse(t, "get foo\r\n")
	if status != StatusOK {
		t.Fatalf("status = %v, want StatusOK", status)
	}
	if cmd.Kind != Get || len(cmd.Keys) != 1 || cmd.Keys[0] != "foo" {
		t.Fatalf("cmd = %+v", cmd)
	}
}

func TestParseGetMultiKey(t *testing.T) {
	cmd, status := parse(t, "get a b c\r\n")
	if status != StatusOK {
		t.Fatalf("status = %v", status)
	}
	want := []string{"a", "b", "c"}
	if len(cmd.Keys) != len(want) {
		t.Fatalf("keys = %v, want %v", cmd.Keys, want)
	}
	for i, k := range want {
		if cmd.Keys[i] != k {
			t.Fatalf("keys[%d] = %q, want %q", i, cmd.Keys[i], k)
		}
	}
}

func TestParseNeedsMoreInputOnPartialLine(t *testing.T) {
	buf := iobuf.New()
	buf.Append([]byte("get fo"))
	cur := iobuf.NewCursor(buf)
	before := cur.Save()

	_, status := Parse(cur)
	if status != StatusNeedMore {
		t.Fatalf("status = %v, want StatusNeedMore", status)
	}

	buf.Append([]byte("o\r\n"))
	cur.Restore(before)
	cmd, status := Parse(cur)
	if status != StatusOK {
		t.Fatalf("status = %v, want StatusOK after more input arrived", status)
	}
	if cmd.Keys[0] != "foo" {
		t.Fatalf("keys[0] = %q, want foo", cmd.Keys[0])
	}
}

func TestParseSetParsesHeaderAndData(t *testing.T) {
	cmd, status := parse(t, "set foo 5 0 3\r\nbar\r\n")
	if status != StatusOK {
		t.Fatalf("status = %v", status)
	}
	if cmd.Kind != Set || cmd.Keys[0] != "foo" || cmd.Flags != 5 || cmd.Bytes != 3 {
		t.Fatalf("cmd = %+v", cmd)
	}
	if !cmd.HasData {
		t.Fatal("expected HasData")
	}
	dst := make([]byte, 3)
	iobuf.CopyFromRef(cmd.Data, dst)
	if string(dst) != "bar" {
		t.Fatalf("data = %q, want bar", dst)
	}
}

func TestParseSetNeedsMoreForPartialDataBlock(t *testing.T) {
	buf := iobuf.New()
	buf.Append([]byte("set foo 0 0 5\r\nab"))
	cur := iobuf.NewCursor(buf)
	save := cur.Save()

	_, status := Parse(cur)
	if status != StatusNeedMore {
		t.Fatalf("status = %v, want StatusNeedMore", status)
	}

	buf.Append([]byte("cde\r\n"))
	cur.Restore(save)
	cmd, status := Parse(cur)
	if status != StatusOK {
		t.Fatalf("status = %v, want StatusOK", status)
	}
	dst := make([]byte, 5)
	iobuf.CopyFromRef(cmd.Data, dst)
	if string(dst) != "abcde" {
		t.Fatalf("data = %q, want abcde", dst)
	}
}

func TestParseCasIncludesCASValue(t *testing.T) {
	cmd, status := parse(t, "cas foo 0 0 1 42\r\nx\r\n")
	if status != StatusOK {
		t.Fatalf("status = %v", status)
	}
	if cmd.CAS != 42 {
		t.Fatalf("CAS = %d, want 42", cmd.CAS)
	}
}

func TestParseDeleteNoreply(t *testing.T) {
	cmd, status := parse(t, "delete foo noreply\r\n")
	if status != StatusOK {
		t.Fatalf("status = %v", status)
	}
	if !cmd.Noreply {
		t.Fatal("expected Noreply")
	}
}

func TestParseIncrDecr(t *testing.T) {
	cmd, status := parse(t, "incr foo 5\r\n")
	if status != StatusOK {
		t.Fatalf("status = %v", status)
	}
	if cmd.Kind != Incr || cmd.Delta != 5 {
		t.Fatalf("cmd = %+v", cmd)
	}

	cmd, status = parse(t, "decr foo 3\r\n")
	if status != StatusOK {
		t.Fatalf("status = %v", status)
	}
	if cmd.Kind != Decr || cmd.Delta != 3 {
		t.Fatalf("cmd = %+v", cmd)
	}
}

func TestParseFlushAllBareAndWithDelay(t *testing.T) {
	cmd, status := parse(t, "flush_all\r\n")
	if status != StatusOK || cmd.Kind != FlushAll {
		t.Fatalf("cmd = %+v status = %v", cmd, status)
	}

	cmd, status = parse(t, "flush_all 30\r\n")
	if status != StatusOK || cmd.Exptime != 30 {
		t.Fatalf("cmd = %+v status = %v", cmd, status)
	}
}

func TestParseVersionAndQuit(t *testing.T) {
	cmd, status := parse(t, "version\r\n")
	if status != StatusOK || cmd.Kind != Version {
		t.Fatalf("cmd = %+v status = %v", cmd, status)
	}

	cmd, status = parse(t, "quit\r\n")
	if status != StatusOK || !cmd.Quit {
		t.Fatalf("cmd = %+v status = %v", cmd, status)
	}
}

func TestParseTouchReturnsNotImplemented(t *testing.T) {
	cmd, status := parse(t, "touch foo 10\r\n")
	if status != StatusOK {
		t.Fatalf("status = %v", status)
	}
	if cmd.Err == nil || cmd.Err.Line != "SERVER_ERROR not implemented\r\n" {
		t.Fatalf("err = %+v, want SERVER_ERROR not implemented", cmd.Err)
	}
}

func TestParseSlabsReturnsNotImplemented(t *testing.T) {
	cmd, status := parse(t, "slabs reassign 1 2\r\n")
	if status != StatusOK {
		t.Fatalf("status = %v", status)
	}
	if cmd.Err == nil || cmd.Err.Line != "SERVER_ERROR not implemented\r\n" {
		t.Fatalf("err = %+v", cmd.Err)
	}
}

func TestParseUnknownCommandReturnsError(t *testing.T) {
	cmd, status := parse(t, "bogus foo\r\n")
	if status != StatusOK {
		t.Fatalf("status = %v", status)
	}
	if cmd.Err == nil || cmd.Err.Line != "ERROR\r\n" {
		t.Fatalf("err = %+v, want ERROR", cmd.Err)
	}
}

func TestParseOversizedKeyIsClientError(t *testing.T) {
	longKey := make([]byte, maxKeyLen+1)
	for i := range longKey {
		longKey[i] = 'a'
	}
	cmd, status := parse(t, "get "+string(longKey)+"\r\n")
	if status != StatusOK {
		t.Fatalf("status = %v", status)
	}
	if cmd.Err == nil {
		t.Fatal("expected a CLIENT_ERROR reply for an oversized key")
	}
	if want := "CLIENT_ERROR parameter is too long\r\n"; cmd.Err.Line != want {
		t.Fatalf("err.Line = %q, want %q", cmd.Err.Line, want)
	}
}

func TestParseResumesAtNextCommandAfterEndOffset(t *testing.T) {
	buf := iobuf.New()
	buf.Append([]byte("get a\r\nget b\r\n"))
	cur := iobuf.NewCursor(buf)

	cmd1, status := Parse(cur)
	if status != StatusOK || cmd1.Keys[0] != "a" {
		t.Fatalf("first parse: cmd = %+v status = %v", cmd1, status)
	}
	cmd2, status := Parse(cur)
	if status != StatusOK || cmd2.Keys[0] != "b" {
		t.Fatalf("second parse: cmd = %+v status = %v", cmd2, status)
	}
}

func TestParseVerbosityLevel(t *testing.T) {
	cmd, status := parse(t, "verbosity 2\r\n")
	if status != StatusOK {
		t.Fatalf("status = %v", status)
	}
	if cmd.Kind != Verbosity || cmd.Delta != 2 {
		t.Fatalf("cmd = %+v", cmd)
	}
}
