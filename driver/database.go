package driver

import (
	"encoding/json"

	"github.com/kestrelgraph/kestrel-go/internal/bridge"
)

// DatabaseManager provides administrative operations on databases: listing,
// creating, deleting, and schema retrieval. All operations are single-call
// delegations to the engine.
type DatabaseManager struct {
	driver *Driver
}

// All returns the names of all databases on the server.
func (dm *DatabaseManager) All() ([]string, error) {
	d := dm.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.h == 0 {
		return nil, ErrNotConnected
	}

	var errH bridge.Handle
	strH := d.b.DatabasesAll(d.h, &errH)
	if strH == 0 {
		if err := takeErr(d.b, errH); err != nil {
			return nil, err
		}
		return nil, nil
	}
	payload, err := d.b.StringValue(strH)
	if err != nil {
		return nil, err
	}
	if err := d.b.ReleaseString(strH); err != nil {
		return nil, err
	}

	var names []string
	if err := json.Unmarshal([]byte(payload), &names); err != nil {
		return nil, &DriverError{Message: "failed to parse database list: " + err.Error()}
	}
	return names, nil
}

// Create creates a new database with the given name.
func (dm *DatabaseManager) Create(name string) error {
	d := dm.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.h == 0 {
		return ErrNotConnected
	}
	var errH bridge.Handle
	d.b.DatabasesCreate(d.h, name, &errH)
	return takeErr(d.b, errH)
}

// Contains reports whether a database with the given name exists.
func (dm *DatabaseManager) Contains(name string) (bool, error) {
	d := dm.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.h == 0 {
		return false, ErrNotConnected
	}
	var errH bridge.Handle
	exists := d.b.DatabasesContains(d.h, name, &errH)
	if err := takeErr(d.b, errH); err != nil {
		return false, err
	}
	return exists, nil
}

// Schema returns the database's schema as definition text.
func (dm *DatabaseManager) Schema(name string) (string, error) {
	d := dm.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.h == 0 {
		return "", ErrNotConnected
	}
	var errH bridge.Handle
	strH := d.b.DatabaseSchema(d.h, name, &errH)
	if strH == 0 {
		if err := takeErr(d.b, errH); err != nil {
			return "", err
		}
		return "", nil
	}
	schema, err := d.b.StringValue(strH)
	if err != nil {
		return "", err
	}
	if err := d.b.ReleaseString(strH); err != nil {
		return "", err
	}
	return schema, nil
}

// Delete removes the database with the given name.
func (dm *DatabaseManager) Delete(name string) error {
	d := dm.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.h == 0 {
		return ErrNotConnected
	}
	var errH bridge.Handle
	d.b.DatabaseDelete(d.h, name, &errH)
	return takeErr(d.b, errH)
}
