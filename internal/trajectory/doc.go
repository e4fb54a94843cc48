// Package trajectory holds the planar point sequences recorded while driving
// a map: the in-progress run owned by a session, finished runs on disk and the
// per-map reference lines they are scored against.
//
// Points are simulator world-plane coordinates. Order is time order; no
// assumption is made about spacing in time or arc length.
package trajectory
