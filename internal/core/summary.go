package core

import "time"

// Snapshot is the full persisted state: the four tabular collections.
type Snapshot struct {
	Members    []Member
	Entries    []Entry
	EventTypes []EventType
	Rules      []Rule
}

// PersonalSummary is a member's balance together with their entries.
type PersonalSummary struct {
	Member  Member
	Entries []Entry
}

// Standing is one leaderboard row.
type Standing struct {
	Rank   int
	Member Member
	// Share is the balance as a rounded percentage of the highest balance.
	Share int
}

// Discrepancy describes a stored balance that disagrees with the ledger.
type Discrepancy struct {
	Member   string
	Stored   int64
	Computed int64
	// Restored is set when the member existed only in the ledger.
	Restored bool
}

type ChangeOp string

const (
	OpMemberAdded    ChangeOp = "member_added"
	OpFineRecorded   ChangeOp = "fine_recorded"
	OpEntryDeleted   ChangeOp = "entry_deleted"
	OpEventsReplaced ChangeOp = "events_replaced"
	OpRulesReplaced  ChangeOp = "rules_replaced"
	OpBookReconciled ChangeOp = "book_reconciled"
)

// Change describes a completed mutation, for notifications.
type Change struct {
	Op      ChangeOp
	EntryID int64
	Member  string
	Amount  int64
	Balance int64
	At      time.Time
}

// DefaultEventTypes is the event catalog a fresh store starts with.
func DefaultEventTypes() []EventType {
	return []EventType{{Name: "例會"}, {Name: "社課"}, {Name: "宣傳"}, {Name: "拉贊"}, {Name: "成發"}}
}

// DefaultRules is the rule catalog a fresh store starts with.
func DefaultRules() []Rule {
	return []Rule{
		{Violation: "遲到", Amount: 50},
		{Violation: "未到", Amount: 100},
		{Violation: "沒帶器材", Amount: 30},
		{Violation: "沒穿社服", Amount: 50},
	}
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Members:    append([]Member(nil), s.Members...),
		Entries:    append([]Entry(nil), s.Entries...),
		EventTypes: append([]EventType(nil), s.EventTypes...),
		Rules:      append([]Rule(nil), s.Rules...),
	}
}
