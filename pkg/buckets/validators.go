package buckets

type RetrieveSnapshotQuery struct {
	Live bool `query:"live" json:"live,omitempty"`
}
