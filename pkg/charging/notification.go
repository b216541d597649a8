package charging

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// NoticeKind distinguishes the two notification flavors.
type NoticeKind int

const (
	NoticeLimit    NoticeKind = iota // charge held at a percentage ceiling
	NoticeDeadline                   // charge paced towards a target time
)

// Notice is the user-visible throttle state.
type Notice struct {
	Kind   NoticeKind
	Done   bool // limit reached / fully charged, vs. still in progress
	Limit  int
	Target time.Time
}

// Notifier presents the current throttle state to the user. Post
// replaces any previous notice; Cancel withdraws it.
type Notifier interface {
	Post(n Notice)
	Cancel()
	// Current returns the posted notice, if any.
	Current() (Notice, bool)
}

// LogNotifier is the default presenter: it records the notice and logs
// transitions.
type LogNotifier struct {
	mu     sync.Mutex
	notice Notice
	posted bool
}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (n *LogNotifier) Post(notice Notice) {
	n.mu.Lock()
	changed := !n.posted || n.notice != notice
	n.notice = notice
	n.posted = true
	n.mu.Unlock()

	if !changed {
		return
	}
	fields := logrus.Fields{"done": notice.Done}
	if notice.Kind == NoticeLimit {
		fields["limit"] = notice.Limit
	} else {
		fields["target"] = notice.Target.Format(time.RFC3339)
	}
	logrus.WithFields(fields).Info("charging control notification posted")
}

func (n *LogNotifier) Cancel() {
	n.mu.Lock()
	wasPosted := n.posted
	n.posted = false
	n.mu.Unlock()

	if wasPosted {
		logrus.Info("charging control notification cancelled")
	}
}

func (n *LogNotifier) Current() (Notice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.notice, n.posted
}
