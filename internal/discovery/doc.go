// Package discovery contains the data model and processing pipeline for
// device discovery.
//
// The model mirrors what travels over the message bus and what is persisted:
//
//   - DeviceTemplate: a user's discovery intent (requirements plus ordered
//     scoring criteria)
//   - RequestTopic: where and how a query is broadcast
//   - DeviceDescription: a candidate device reported by a repository,
//     identified by its MAC address
//   - CandidateDevicesCollection / CandidateDevicesContainer: per-repository
//     and per-template aggregates of descriptions
//   - Revision: an ordered diff (upsert/replace/delete) against a stored
//     collection
//
// Processing turns a container into a Ranking: collections are filtered,
// deduplicated and flattened, descriptions are deduplicated by MAC keeping
// the most recently updated one, and each survivor is scored by the
// CandidateDeviceScorer against the template's criteria. Scores are never
// negative.
//
// Persistence of containers and discovery logs goes through the Repository
// interfaces defined here; the SQLite implementations store the aggregates
// as JSON documents.
package discovery
