// Package decision implements the response decision rules of a world:
// the paragraph-anchored mention parser, the turn governor bounding
// agent-to-agent chains, and the ordered rule evaluation that decides
// whether an agent responds to a published message.
//
// The rule kernel (Evaluate) is pure so it can serve both live dispatch
// gating and retrospective history filtering; the Engine applies the
// kernel's counter side effects to live agents during dispatch.
package decision
