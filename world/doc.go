// Package world is the composition root of the coordination protocol: a
// Manager owns world and agent lifecycle, wires one message bus per
// world, runs the per-agent response handler (model generation, memory
// appends, auto-mentions), archives cleared memory and routes approval
// decisions into agent memory. Everything below it — decision rules,
// bus, approval scanning, chat bookkeeping, storage — is driven from
// here.
package world
