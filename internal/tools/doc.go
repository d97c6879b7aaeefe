// Package tools implements the assistant's built-in capability modules:
// weather (a stub), current time, date arithmetic, and a calendar that can
// both list and create events.
package tools
