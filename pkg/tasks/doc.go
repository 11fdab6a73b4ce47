// Package tasks tracks background work per owner.
//
// A plugin spawns any number of named tasks with Spawn and later blocks in
// Join until every task it owns has finished. Tasks run on a shared
// workerpool.Pool. A task that fails, by returning an error or panicking,
// is logged and recorded; its siblings keep running.
//
// Join waits for the owner's live count to reach zero. A task that spawns
// another task for the same owner before returning keeps the owner busy, so
// that child is awaited too.
package tasks
