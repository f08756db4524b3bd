// Package logx is couponwatch's logging layer: a small value-type Logger on
// top of zerolog with typed fields, a readable console writer with short
// callers, an optional JSON file sink, and live level/output changes on
// config reload (Service.Apply).
//
// Components derive their logger once:
//
//	log := root.With(logx.String("comp", "pipeline"))
package logx
