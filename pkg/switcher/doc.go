// Package switcher implements the distributed agreement that decides
// when a site fails over and carries out the role swap once agreement
// is reached. There is no leader election and no quorum: every
// non-zookeeper node writes only its own switch_status, and agreement
// is expressed purely as the set of switch_status values converging.
package switcher
