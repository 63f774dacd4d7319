package fidcommon

import "encoding/json"

func marshalEntries(entries []MetadataEntry) ([]byte, error) {
	if entries == nil {
		entries = []MetadataEntry{}
	}
	return json.Marshal(entries)
}

func unmarshalEntries(data []byte) ([]MetadataEntry, error) {
	var entries []MetadataEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
