// Package watch keeps the set of watched projects.
//
// A Registry holds at most one Entry per sassconfig.json path. Starting a
// watch compiles the whole project once, writing failures into the output
// files, and then recompiles single files as they are saved. Destroying a
// watch closes its Subscription before returning, so no compile is triggered
// afterwards.
package watch
