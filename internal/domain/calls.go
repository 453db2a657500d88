package domain

import (
	"sort"
	"time"
)

// CallSignature identifies a cacheable network call by name and canonical
// parameter fingerprint.
type CallSignature struct {
	Name        string
	Fingerprint string
}

// CallRecord tracks the last start and last successful sync of one
// signature. A zero time means the event never happened.
type CallRecord struct {
	Signature     CallSignature
	LastSyncedAt  time.Time
	LastStartedAt time.Time
}

type CallTypeBucket struct {
	Name         string
	LastSyncedAt time.Time
	Records      []CallRecord
}

// CallState is the freshness store. Values are never mutated in place:
// every transition returns a new CallState and leaves untouched buckets as
// they were.
type CallState struct {
	Buckets map[string]CallTypeBucket
}

func NewCallState() CallState {
	return CallState{Buckets: map[string]CallTypeBucket{}}
}

func (s CallState) Bucket(name string) (CallTypeBucket, bool) {
	bucket, ok := s.Buckets[name]
	return bucket, ok
}

func (s CallState) Record(sig CallSignature) (CallRecord, bool) {
	bucket, ok := s.Buckets[sig.Name]
	if !ok {
		return CallRecord{}, false
	}

	for _, record := range bucket.Records {
		if record.Signature == sig {
			return record, true
		}
	}

	return CallRecord{}, false
}

// IsFresh reports whether sig synced successfully less than ttl ago.
func (s CallState) IsFresh(sig CallSignature, ttl time.Duration, now time.Time) bool {
	record, ok := s.Record(sig)
	if !ok || record.LastSyncedAt.IsZero() {
		return false
	}

	return record.LastSyncedAt.Add(ttl).After(now)
}

// JustStarted reports whether a call for sig was started less than window
// ago and may still be in flight.
func (s CallState) JustStarted(sig CallSignature, window time.Duration, now time.Time) bool {
	record, ok := s.Record(sig)
	if !ok || record.LastStartedAt.IsZero() {
		return false
	}

	return record.LastStartedAt.Add(window).After(now)
}

// Names returns the bucket names in lexical order.
func (s CallState) Names() []string {
	names := make([]string, 0, len(s.Buckets))
	for name := range s.Buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func RecordCallStart(s CallState, sig CallSignature, now time.Time) CallState {
	bucket, ok := s.Buckets[sig.Name]
	if !ok {
		bucket = CallTypeBucket{Name: sig.Name}
	}

	bucket.Records = upsertRecord(bucket.Records, sig, func(record *CallRecord) {
		record.LastStartedAt = now
	})

	return s.withBucket(bucket)
}

// RecordCallSuccess marks sig as synced at now. A bucket whose own last sync
// is older than ttl drops all of its records first.
func RecordCallSuccess(s CallState, sig CallSignature, ttl time.Duration, now time.Time) CallState {
	bucket, ok := s.Buckets[sig.Name]
	if !ok {
		bucket = CallTypeBucket{Name: sig.Name}
	}

	if !bucket.LastSyncedAt.Add(ttl).After(now) {
		bucket.Records = nil
	}

	bucket.Records = upsertRecord(bucket.Records, sig, func(record *CallRecord) {
		record.LastSyncedAt = now
		if record.LastStartedAt.IsZero() {
			record.LastStartedAt = now
		}
	})
	bucket.LastSyncedAt = now

	return s.withBucket(bucket)
}

// InvalidateCalls removes the named bucket, as if the call was never made.
func InvalidateCalls(s CallState, name string) CallState {
	if _, ok := s.Buckets[name]; !ok {
		return s
	}

	buckets := make(map[string]CallTypeBucket, len(s.Buckets))
	for key, bucket := range s.Buckets {
		if key == name {
			continue
		}
		buckets[key] = bucket
	}

	return CallState{Buckets: buckets}
}

// WithoutStarts drops every start timestamp. Persisted call state keeps
// only sync times so that a reload never inherits a dedup window.
func (s CallState) WithoutStarts() CallState {
	buckets := make(map[string]CallTypeBucket, len(s.Buckets))
	for name, bucket := range s.Buckets {
		records := make([]CallRecord, 0, len(bucket.Records))
		for _, record := range bucket.Records {
			if record.LastSyncedAt.IsZero() {
				continue
			}
			record.LastStartedAt = time.Time{}
			records = append(records, record)
		}
		bucket.Records = records
		buckets[name] = bucket
	}

	return CallState{Buckets: buckets}
}

// Retain keeps the records for which keep returns true. Buckets keep their
// own sync time even when emptied.
func (s CallState) Retain(keep func(CallSignature) bool) CallState {
	buckets := make(map[string]CallTypeBucket, len(s.Buckets))
	for name, bucket := range s.Buckets {
		records := make([]CallRecord, 0, len(bucket.Records))
		for _, record := range bucket.Records {
			if keep(record.Signature) {
				records = append(records, record)
			}
		}
		bucket.Records = records
		buckets[name] = bucket
	}

	return CallState{Buckets: buckets}
}

func (s CallState) withBucket(bucket CallTypeBucket) CallState {
	buckets := make(map[string]CallTypeBucket, len(s.Buckets)+1)
	for key, existing := range s.Buckets {
		buckets[key] = existing
	}
	buckets[bucket.Name] = bucket

	return CallState{Buckets: buckets}
}

func upsertRecord(records []CallRecord, sig CallSignature, update func(*CallRecord)) []CallRecord {
	next := make([]CallRecord, len(records), len(records)+1)
	copy(next, records)

	for i := range next {
		if next[i].Signature == sig {
			update(&next[i])
			return next
		}
	}

	record := CallRecord{Signature: sig}
	update(&record)

	return append(next, record)
}
