package dnd

import (
	"image"
	"reflect"
	"testing"
	"time"

	"github.com/BurntSushi/xgb/xproto"
)

func TestDropURIListOnTarget(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	var rec recorder
	h := b.CreateDropTarget(testWindow, 0, 0, 100, 100, rec.callbacks())
	b.Update()

	if !b.HandleClientMessage(c.enter(5, TypeURIList)) {
		t.Fatal("enter not handled")
	}
	if got := b.State(); got != Entered {
		t.Fatalf("state after enter = %v, want Entered", got)
	}

	if !b.HandleClientMessage(c.position(10, 10, ActionCopy)) {
		t.Fatal("position not handled")
	}
	st := c.lastSent(t, "XdndStatus")
	if st.dst != testSource || st.data[0] != uint32(testWindow) {
		t.Errorf("status sent to 0x%x for window 0x%x", st.dst, st.data[0])
	}
	if st.data[1]&statusAccept == 0 {
		t.Errorf("status flags = %b, want accept", st.data[1])
	}
	if st.data[4] != uint32(c.atom(ActionCopy)) {
		t.Errorf("status action = %d, want XdndActionCopy", st.data[4])
	}
	if got := b.State(); got != Active {
		t.Fatalf("state after position = %v, want Active", got)
	}

	ops := b.queue.drain()
	var over *Op
	for i := range ops {
		if ops[i].Kind == OpDragOver {
			over = &ops[i]
		}
	}
	if over == nil || over.Target != h || over.Pos != image.Pt(10, 10) {
		t.Fatalf("queued ops = %+v, want a DragOver on %v at (10,10)", ops, h)
	}
	for _, op := range ops {
		b.queue.push(op)
	}

	c.selection[testWindow] = []byte("file:///a.txt\r\nfile:///b.txt")
	if !b.HandleClientMessage(c.drop(1234)) {
		t.Fatal("drop not handled")
	}
	if len(c.conversions) != 1 {
		t.Fatalf("conversions = %d, want 1", len(c.conversions))
	}
	conv := c.conversions[0]
	if conv.requestor != testWindow || conv.selection != c.atom("XdndSelection") ||
		conv.target != c.atom(TypeURIList) || conv.time != 1234 {
		t.Errorf("unexpected conversion %+v", conv)
	}
	if b.State() != Inactive || !b.AwaitingPayload() {
		t.Fatalf("after drop: state=%v awaiting=%v", b.State(), b.AwaitingPayload())
	}
	if n := c.countSent("XdndFinished"); n != 0 {
		t.Fatalf("finished sent before the data arrived (%d)", n)
	}

	if !b.HandleSelectionNotify(c.selectionNotify(conv.prop)) {
		t.Fatal("selection notify not handled")
	}
	fin := c.lastSent(t, "XdndFinished")
	if fin.dst != testSource || fin.data[1]&finishedAccepted == 0 {
		t.Errorf("finished = %+v, want accepted to source", fin)
	}

	b.Update()
	want := []OpKind{OpEnter, OpDragOver, OpDrop}
	if !equalKinds(rec.kinds(), want) {
		t.Fatalf("callbacks = %v, want %v", rec.kinds(), want)
	}
	drop := rec.events[2]
	if !reflect.DeepEqual(drop.Files, []string{"/a.txt", "/b.txt"}) {
		t.Errorf("dropped files = %q", drop.Files)
	}
	if drop.Target != h || drop.Pos != image.Pt(10, 10) {
		t.Errorf("drop event = %+v", drop)
	}
	if rec.events[0].Session != drop.Session {
		t.Error("drop carries a different session than enter")
	}
}

func TestEnterWhileActiveLeavesOldTarget(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	h := b.CreateDropTarget(testWindow, 0, 0, 50, 50, Callbacks{})
	b.Update()

	b.HandleClientMessage(c.enter(5, TypeURIList))
	b.HandleClientMessage(c.position(5, 5, ""))
	old := b.sess.id
	b.queue.drain()

	b.HandleClientMessage(c.enter(5, TypeURIList))
	ops := b.queue.drain()
	if len(ops) != 1 || ops[0].Kind != OpLeave || ops[0].Target != h || ops[0].Session != old {
		t.Fatalf("ops after second enter = %+v, want one Leave for %v", ops, h)
	}
	if b.State() != Entered || b.sess.id == old {
		t.Errorf("state = %v, new session = %v", b.State(), b.sess.id != old)
	}
}

func TestSessionAlwaysEndsInactive(t *testing.T) {
	tests := []struct {
		name      string
		positions [][2]int
		end       string
	}{
		{"enter leave", nil, "leave"},
		{"enter drop", nil, "drop"},
		{"over target then leave", [][2]int{{1, 1}, {2, 2}}, "leave"},
		{"over target then drop", [][2]int{{1, 1}}, "drop"},
		{"off target then drop", [][2]int{{500, 500}}, "drop"},
		{"across targets then drop", [][2]int{{1, 1}, {150, 1}, {500, 1}, {150, 2}}, "drop"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, c := newTestBridge(t, Options{})
			b.CreateDropTarget(testWindow, 0, 0, 100, 100, Callbacks{})
			b.CreateDropTarget(testWindow, 100, 0, 100, 100, Callbacks{})
			b.Update()

			b.HandleClientMessage(c.enter(5, TypeURIList))
			for _, p := range tt.positions {
				b.HandleClientMessage(c.position(p[0], p[1], ActionCopy))
			}
			switch tt.end {
			case "leave":
				b.HandleClientMessage(c.leave())
			case "drop":
				b.HandleClientMessage(c.drop(0))
			}
			if got := b.State(); got != Inactive {
				t.Errorf("state = %v, want Inactive", got)
			}
		})
	}
}

func TestDropWithoutSessionIsAnswered(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	b.CreateDropTarget(testWindow, 0, 0, 100, 100, Callbacks{})
	b.Update()

	if !b.HandleClientMessage(c.drop(0)) {
		t.Fatal("drop not handled")
	}
	fin := c.lastSent(t, "XdndFinished")
	if fin.dst != testSource || fin.data[1] != 0 {
		t.Errorf("finished = %+v, want rejected to source", fin)
	}
	if n := b.queue.len(); n != 0 {
		t.Errorf("queued %d ops", n)
	}
	if len(c.conversions) != 0 {
		t.Error("selection requested for a rejected drop")
	}
}

func TestDropBeforeAnyPositionIsRejected(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	b.CreateDropTarget(testWindow, 0, 0, 100, 100, Callbacks{})
	b.Update()

	b.HandleClientMessage(c.enter(5, TypeURIList))
	b.HandleClientMessage(c.drop(0))

	fin := c.lastSent(t, "XdndFinished")
	if fin.data[1] != 0 {
		t.Errorf("drop without a target was accepted")
	}
	for _, op := range b.queue.drain() {
		if op.Kind == OpDrop {
			t.Errorf("queued %+v", op)
		}
	}
	if b.State() != Inactive || b.AwaitingPayload() {
		t.Errorf("state=%v awaiting=%v", b.State(), b.AwaitingPayload())
	}
}

func TestNoAcceptableTypeRejectsSession(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	b.CreateDropTarget(testWindow, 0, 0, 100, 100, Callbacks{})
	b.Update()

	b.HandleClientMessage(c.enter(5, "text/plain", "UTF8_STRING"))
	if b.State() != Inactive {
		t.Fatalf("state = %v, want Inactive", b.State())
	}
	b.HandleClientMessage(c.position(10, 10, ActionCopy))
	if st := c.lastSent(t, "XdndStatus"); st.data[1]&statusAccept != 0 {
		t.Error("position accepted without a session")
	}
	if n := b.queue.len(); n != 0 {
		t.Errorf("queued %d ops", n)
	}
}

func TestOldProtocolVersionIgnored(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	b.HandleClientMessage(c.enter(2, TypeURIList))
	if b.State() != Inactive {
		t.Errorf("state = %v, want Inactive", b.State())
	}
}

func TestTypeListResolvedOnFirstPosition(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	h := b.CreateDropTarget(testWindow, 0, 0, 100, 100, Callbacks{})
	b.Update()

	types := []string{"text/plain", "text/html", "UTF8_STRING", TypeURIList}
	for _, name := range types {
		c.typeLists[testSource] = append(c.typeLists[testSource], c.atom(name))
	}
	b.HandleClientMessage(c.enter(5, types...))
	if b.State() != Entered || b.sess.typeList == nil {
		t.Fatalf("state = %v, type list requested = %v", b.State(), b.sess.typeList != nil)
	}

	b.HandleClientMessage(c.position(10, 10, ActionCopy))
	if st := c.lastSent(t, "XdndStatus"); st.data[1]&statusAccept == 0 {
		t.Fatal("position rejected")
	}
	if b.sess.dataType.name != TypeURIList || b.sess.target != h {
		t.Errorf("negotiated %q, target %v", b.sess.dataType.name, b.sess.target)
	}
}

func TestTypeListWithoutAcceptableTypeAborts(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	b.CreateDropTarget(testWindow, 0, 0, 100, 100, Callbacks{})
	b.Update()

	types := []string{"a/a", "b/b", "c/c", "d/d"}
	for _, name := range types {
		c.typeLists[testSource] = append(c.typeLists[testSource], c.atom(name))
	}
	b.HandleClientMessage(c.enter(5, types...))
	b.HandleClientMessage(c.position(10, 10, ActionCopy))

	if st := c.lastSent(t, "XdndStatus"); st.data[1]&statusAccept != 0 {
		t.Error("position accepted")
	}
	if b.State() != Inactive {
		t.Errorf("state = %v, want Inactive", b.State())
	}
	if n := b.queue.len(); n != 0 {
		t.Errorf("queued %d ops", n)
	}
}

func TestUnsupportedActionRejected(t *testing.T) {
	b, c := newTestBridge(t, Options{Actions: []string{ActionCopy}})
	b.CreateDropTarget(testWindow, 0, 0, 100, 100, Callbacks{})
	b.Update()

	b.HandleClientMessage(c.enter(5, TypeURIList))
	b.HandleClientMessage(c.position(10, 10, ActionMove))

	if st := c.lastSent(t, "XdndStatus"); st.data[1]&statusAccept != 0 || st.data[4] != 0 {
		t.Errorf("status = %+v, want rejection", st)
	}
	if b.State() != Inactive {
		t.Errorf("state = %v, want Inactive", b.State())
	}
}

func TestPositionOffTargetRejectsButQueues(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	b.CreateDropTarget(testWindow, 0, 0, 10, 10, Callbacks{})
	b.Update()

	b.HandleClientMessage(c.enter(5, TypeURIList))
	b.HandleClientMessage(c.position(50, 50, ActionCopy))

	if st := c.lastSent(t, "XdndStatus"); st.data[1]&statusAccept != 0 {
		t.Error("position off target accepted")
	}
	if st := c.lastSent(t, "XdndStatus"); st.data[1]&statusSendPositions == 0 {
		t.Error("status does not ask for further positions")
	}
	ops := b.queue.drain()
	if len(ops) != 1 || ops[0].Kind != OpDragOver || !ops[0].Target.IsZero() {
		t.Errorf("ops = %+v, want one unresolved DragOver", ops)
	}
	if b.State() != Entered {
		t.Errorf("state = %v, want Entered", b.State())
	}
}

func TestStatusRectangleInRootCoordinates(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	c.origin = image.Pt(300, 200)
	b.CreateDropTarget(testWindow, 20, 30, 40, 50, Callbacks{})
	b.Update()

	b.HandleClientMessage(c.enter(5, TypeURIList))
	b.HandleClientMessage(c.position(330, 240, ActionCopy))

	st := c.lastSent(t, "XdndStatus")
	if st.data[2] != pack16(320, 230) || st.data[3] != pack16(40, 50) {
		t.Errorf("status rect = %08x %08x", st.data[2], st.data[3])
	}
	if b.sess.pos != image.Pt(30, 40) {
		t.Errorf("session position = %v, want (30,40)", b.sess.pos)
	}
}

func TestMovingBetweenTargetsQueuesLeaveAndEnter(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	h1 := b.CreateDropTarget(testWindow, 0, 0, 100, 100, Callbacks{})
	h2 := b.CreateDropTarget(testWindow, 100, 0, 100, 100, Callbacks{})
	b.Update()

	b.HandleClientMessage(c.enter(5, TypeURIList))
	b.HandleClientMessage(c.position(10, 10, ActionCopy))
	b.HandleClientMessage(c.position(110, 10, ActionCopy))

	var got []string
	for _, op := range b.queue.drain() {
		got = append(got, op.Kind.String()+" "+op.Target.String())
	}
	want := []string{
		"Enter " + h1.String(),
		"DragOver " + h1.String(),
		"Leave " + h1.String(),
		"Enter " + h2.String(),
		"DragOver " + h2.String(),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ops =\n%q\nwant\n%q", got, want)
	}
}

func TestLeaveQueuesLeaveForTarget(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	h := b.CreateDropTarget(testWindow, 0, 0, 100, 100, Callbacks{})
	b.Update()

	b.HandleClientMessage(c.enter(5, TypeURIList))
	b.HandleClientMessage(c.position(10, 10, ActionCopy))
	b.queue.drain()
	b.HandleClientMessage(c.leave())

	ops := b.queue.drain()
	if len(ops) != 1 || ops[0].Kind != OpLeave || ops[0].Target != h {
		t.Errorf("ops = %+v, want Leave for %v", ops, h)
	}
	if b.State() != Inactive {
		t.Errorf("state = %v", b.State())
	}
}

func TestStrayLeaveIgnored(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	if !b.HandleClientMessage(c.leave()) {
		t.Fatal("leave not consumed")
	}
	if n := b.queue.len(); n != 0 {
		t.Errorf("queued %d ops", n)
	}
}

func TestSelectionRefusedLeavesTarget(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	h := b.CreateDropTarget(testWindow, 0, 0, 100, 100, Callbacks{})
	b.Update()

	b.HandleClientMessage(c.enter(5, TypeURIList))
	b.HandleClientMessage(c.position(10, 10, ActionCopy))
	b.queue.drain()
	b.HandleClientMessage(c.drop(0))
	b.HandleSelectionNotify(c.selectionNotify(xproto.AtomNone))

	ops := b.queue.drain()
	if len(ops) != 1 || ops[0].Kind != OpLeave || ops[0].Target != h {
		t.Errorf("ops = %+v, want Leave for %v", ops, h)
	}
	if fin := c.lastSent(t, "XdndFinished"); fin.data[1] != 0 {
		t.Error("failed transfer reported as accepted")
	}
	if b.AwaitingPayload() {
		t.Error("still awaiting payload")
	}
}

func TestSelectionReadErrorLeavesTarget(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	b.CreateDropTarget(testWindow, 0, 0, 100, 100, Callbacks{})
	b.Update()
	c.failRead = true

	b.HandleClientMessage(c.enter(5, TypeURIList))
	b.HandleClientMessage(c.position(10, 10, ActionCopy))
	b.queue.drain()
	b.HandleClientMessage(c.drop(0))
	b.HandleSelectionNotify(c.selectionNotify(xproto.AtomPrimary))

	for _, op := range b.queue.drain() {
		if op.Kind == OpDrop {
			t.Errorf("drop queued after a failed read: %+v", op)
		}
	}
}

func TestConvertSelectionErrorFinishesDrop(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	b.CreateDropTarget(testWindow, 0, 0, 100, 100, Callbacks{})
	b.Update()
	c.failConvert = true

	b.HandleClientMessage(c.enter(5, TypeURIList))
	b.HandleClientMessage(c.position(10, 10, ActionCopy))
	b.HandleClientMessage(c.drop(0))

	if b.AwaitingPayload() {
		t.Error("awaiting payload after failed conversion")
	}
	if n := c.countSent("XdndFinished"); n != 1 {
		t.Errorf("finished sent %d times", n)
	}
}

func TestUnrelatedSelectionNotConsumed(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	ev := c.selectionNotify(xproto.AtomPrimary)
	ev.Selection = c.atom("CLIPBOARD")
	if b.HandleSelectionNotify(ev) {
		t.Error("clipboard selection consumed")
	}
}

func TestNonURIListTypeDropsImmediately(t *testing.T) {
	b, c := newTestBridge(t, Options{Types: []string{TypeURIList, "text/plain"}})
	var rec recorder
	b.CreateDropTarget(testWindow, 0, 0, 100, 100, rec.callbacks())
	b.Update()

	b.HandleClientMessage(c.enter(5, "text/plain"))
	b.HandleClientMessage(c.position(10, 10, ActionCopy))
	b.HandleClientMessage(c.drop(0))

	if len(c.conversions) != 0 || b.AwaitingPayload() {
		t.Fatal("selection requested for a non uri-list drop")
	}
	if fin := c.lastSent(t, "XdndFinished"); fin.data[1]&finishedAccepted == 0 {
		t.Error("drop not accepted")
	}
	b.Update()
	last := rec.events[len(rec.events)-1]
	if last.Kind != OpDrop || len(last.Files) != 0 {
		t.Errorf("last event = %+v, want a drop without files", last)
	}
}

func TestPreferredTypeWins(t *testing.T) {
	b, c := newTestBridge(t, Options{Types: []string{TypeURIList, "text/plain"}})
	b.HandleClientMessage(c.enter(5, "text/plain", TypeURIList))
	if b.sess.dataType.name != TypeURIList {
		t.Errorf("negotiated %q, want %q", b.sess.dataType.name, TypeURIList)
	}
}

func TestExpirePending(t *testing.T) {
	b, c := newTestBridge(t, Options{PayloadTimeout: time.Second})
	h := b.CreateDropTarget(testWindow, 0, 0, 100, 100, Callbacks{})
	b.Update()

	b.HandleClientMessage(c.enter(5, TypeURIList))
	b.HandleClientMessage(c.position(10, 10, ActionCopy))
	b.HandleClientMessage(c.drop(0))
	b.queue.drain()

	start := b.now()
	if b.ExpirePending(start.Add(500 * time.Millisecond)) {
		t.Fatal("expired before the timeout")
	}
	if !b.ExpirePending(start.Add(time.Second)) {
		t.Fatal("not expired after the timeout")
	}
	ops := b.queue.drain()
	if len(ops) != 1 || ops[0].Kind != OpLeave || ops[0].Target != h {
		t.Errorf("ops = %+v, want Leave", ops)
	}
	if fin := c.lastSent(t, "XdndFinished"); fin.data[1] != 0 {
		t.Error("abandoned drop reported as accepted")
	}

	// A late notify is consumed and ignored.
	if !b.HandleSelectionNotify(c.selectionNotify(xproto.AtomPrimary)) {
		t.Error("late notify not consumed")
	}
	if n := b.queue.len(); n != 0 {
		t.Errorf("late notify queued %d ops", n)
	}
}

func TestPendingWaitsWithoutTimeout(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	b.CreateDropTarget(testWindow, 0, 0, 100, 100, Callbacks{})
	b.Update()

	b.HandleClientMessage(c.enter(5, TypeURIList))
	b.HandleClientMessage(c.position(10, 10, ActionCopy))
	b.HandleClientMessage(c.drop(0))

	if b.ExpirePending(b.now().Add(24 * time.Hour)) {
		t.Error("expired with no timeout configured")
	}
	if !b.AwaitingPayload() {
		t.Error("pending drop lost")
	}

	// A new drag force-closes the half-open transfer.
	b.queue.drain()
	b.HandleClientMessage(c.enter(5, TypeURIList))
	if b.AwaitingPayload() {
		t.Error("new enter did not close the pending drop")
	}
	ops := b.queue.drain()
	if len(ops) != 1 || ops[0].Kind != OpLeave {
		t.Errorf("ops = %+v, want one Leave", ops)
	}
}

func TestUnrelatedClientMessageNotConsumed(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	if b.HandleClientMessage(c.message("WM_PROTOCOLS", 1, 2)) {
		t.Error("WM_PROTOCOLS consumed")
	}
}

func TestMalformedMessageAbortsSession(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	h := b.CreateDropTarget(testWindow, 0, 0, 100, 100, Callbacks{})
	b.Update()

	b.HandleClientMessage(c.enter(5, TypeURIList))
	b.HandleClientMessage(c.position(10, 10, ActionCopy))
	b.queue.drain()

	ev := c.position(20, 20, ActionCopy)
	ev.Format = 8
	if !b.HandleClientMessage(ev) {
		t.Fatal("malformed position not consumed")
	}
	if b.State() != Inactive {
		t.Errorf("state = %v, want Inactive", b.State())
	}
	ops := b.queue.drain()
	if len(ops) != 1 || ops[0].Kind != OpLeave || ops[0].Target != h {
		t.Errorf("ops = %+v, want the hovered target left", ops)
	}
}

func TestFinishedLayoutByVersion(t *testing.T) {
	m := finishedMsg{target: testWindow, accepted: true, action: 7}
	if d := m.data32(5); d != [5]uint32{uint32(testWindow), 1, 7, 0, 0} {
		t.Errorf("v5 = %v", d)
	}
	if d := m.data32(4); d != [5]uint32{uint32(testWindow)} {
		t.Errorf("v4 = %v", d)
	}
}

func TestLeaveFromOtherSourceEndsSession(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	h := b.CreateDropTarget(testWindow, 0, 0, 100, 100, Callbacks{})
	b.Update()

	b.HandleClientMessage(c.enter(5, TypeURIList))
	b.HandleClientMessage(c.position(10, 10, ActionCopy))
	b.queue.drain()
	if b.State() != Active {
		t.Fatalf("state = %v, want Active", b.State())
	}

	if !b.HandleClientMessage(c.message("XdndLeave", 0x999)) {
		t.Fatal("leave not consumed")
	}
	if b.State() != Inactive {
		t.Errorf("state = %v, want Inactive", b.State())
	}
	ops := b.queue.drain()
	if len(ops) != 1 || ops[0].Kind != OpLeave || ops[0].Target != h {
		t.Errorf("ops = %+v, want Leave for %v", ops, h)
	}
}

func TestDropFromOtherSourceEndsSession(t *testing.T) {
	b, c := newTestBridge(t, Options{})
	h := b.CreateDropTarget(testWindow, 0, 0, 100, 100, Callbacks{})
	b.Update()

	b.HandleClientMessage(c.enter(5, TypeURIList))
	b.HandleClientMessage(c.position(10, 10, ActionCopy))
	b.queue.drain()

	if !b.HandleClientMessage(c.message("XdndDrop", 0x999, 0, 0)) {
		t.Fatal("drop not consumed")
	}
	if b.State() != Inactive {
		t.Errorf("state = %v, want Inactive", b.State())
	}
	if b.AwaitingPayload() {
		t.Error("payload requested for a foreign drop")
	}
	fin := c.lastSent(t, "XdndFinished")
	if fin.dst != 0x999 || fin.data[1] != 0 {
		t.Errorf("finished = %+v, want refusal to 0x999", fin)
	}
	ops := b.queue.drain()
	if len(ops) != 1 || ops[0].Kind != OpLeave || ops[0].Target != h {
		t.Errorf("ops = %+v, want Leave for %v", ops, h)
	}
}
