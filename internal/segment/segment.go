// Package segment attributes the events of one turn to the agents that own
// them.
package segment

import (
	"github.com/xiaot623/docsagent/internal/domain"
)

// AnomalyKind classifies a non-fatal segmentation problem.
type AnomalyKind string

const (
	AnomalyUnresolvedPayload  AnomalyKind = "unresolved_payload"
	AnomalyOrphanResult       AnomalyKind = "orphan_result"
	AnomalyOverlappingHandoff AnomalyKind = "overlapping_handoff"
	AnomalyDanglingHandoff    AnomalyKind = "dangling_handoff"
)

// Anomaly is a diagnostic produced while segmenting. It never aborts
// segmentation.
type Anomaly struct {
	Kind   AnomalyKind `json:"kind"`
	Index  int         `json:"index"`
	CallID string      `json:"call_id,omitempty"`
	Agent  string      `json:"agent"`
	Detail string      `json:"detail,omitempty"`
}

// Transfer is one resolved change of ownership.
type Transfer struct {
	From       string
	To         string
	CallID     string
	Resolution ResolutionKind
}

// Segmentation is the result of Segment.
type Segmentation struct {
	// Owners maps an agent id to the events it owns, in stream order.
	Owners map[string][]domain.Event
	// Order lists the agents of Owners by first ownership.
	Order      []string
	FinalAgent string
	Transfers  []Transfer
	Anomalies  []Anomaly
}

// Segment partitions events by owning agent. An event belongs to the agent
// that is current when it is produced; ownership only moves after a
// handoff_result that answers the pending handoff_call and names a target.
// Every agent that receives control gets an entry in Owners, even an empty
// one.
// Only one hand-off may be pending at a time: a second handoff_call abandons
// the first and is reported as an anomaly.
func Segment(events []domain.Event, initialAgent string) Segmentation {
	seg := Segmentation{
		Owners:     make(map[string][]domain.Event),
		FinalAgent: initialAgent,
	}

	current := initialAgent
	pending := ""
	for i, ev := range events {
		if _, seen := seg.Owners[current]; !seen {
			seg.Order = append(seg.Order, current)
		}
		seg.Owners[current] = append(seg.Owners[current], ev)

		switch ev.Kind {
		case domain.EventKindHandoffCall:
			if pending != "" {
				seg.Anomalies = append(seg.Anomalies, Anomaly{
					Kind:   AnomalyOverlappingHandoff,
					Index:  i,
					CallID: pending,
					Agent:  current,
					Detail: "hand-off " + pending + " abandoned by " + ev.CallID,
				})
			}
			pending = ev.CallID

		case domain.EventKindHandoffResult:
			if pending == "" || ev.CallID != pending {
				seg.Anomalies = append(seg.Anomalies, Anomaly{
					Kind:   AnomalyOrphanResult,
					Index:  i,
					CallID: ev.CallID,
					Agent:  current,
					Detail: "no pending hand-off with this call id",
				})
				continue
			}
			pending = ""

			var output []byte
			if ev.Result != nil {
				output = ev.Result.Output
			}
			target := ResolveHandoffTarget(output)
			if !target.Resolved() {
				seg.Anomalies = append(seg.Anomalies, Anomaly{
					Kind:   AnomalyUnresolvedPayload,
					Index:  i,
					CallID: ev.CallID,
					Agent:  current,
					Detail: target.Reason,
				})
				continue
			}
			seg.Transfers = append(seg.Transfers, Transfer{
				From:       current,
				To:         target.AgentID,
				CallID:     ev.CallID,
				Resolution: target.Kind,
			})
			current = target.AgentID
			if _, seen := seg.Owners[current]; !seen {
				seg.Order = append(seg.Order, current)
				seg.Owners[current] = []domain.Event{}
			}
		}
	}

	if pending != "" {
		seg.Anomalies = append(seg.Anomalies, Anomaly{
			Kind:   AnomalyDanglingHandoff,
			Index:  len(events) - 1,
			CallID: pending,
			Agent:  current,
			Detail: "hand-off never answered",
		})
	}
	seg.FinalAgent = current
	return seg
}
