// Package app provides the application service layer.
//
// Orchestrates use cases: votee lifecycle, voting, and voter read filters.
// Sits between HTTP handlers and the voting engine. Depends on domain interfaces, not concrete stores.
package app
