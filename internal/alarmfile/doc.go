// Package alarmfile watches a filesystem flag ("on"/"off") written by site
// alarm panels and turns its transitions into intrusion events.
package alarmfile
