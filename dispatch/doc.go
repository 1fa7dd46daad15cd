// Package dispatch binds registered methods to target objects and runs them
// on behalf of scripts.
//
// A method is declared with a MethodSpec naming its target class, the
// context values it needs and the modules that must be installed. The
// Registry filters methods against a target's UnbakedContext and wraps the
// applicable ones in a Peripheral, which scripts call by index:
//   - context references stay unresolved until a method bakes them, so a
//     method can defer resolution to the tick loop;
//   - each delegate is built at most once, on first call or eagerly in
//     strict mode, and a failed build is remembered;
//   - a Result may be deferred onto a scheduling Domain any number of times
//     before it yields values, and the calling goroutine waits for the
//     final values through a ResultExecutor.
package dispatch
