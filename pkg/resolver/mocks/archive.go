package mocks

import (
	mock "github.com/stretchr/testify/mock"
)

// Archive is a testify mock of resolver.Archive.
type Archive struct {
	mock.Mock
}

// NewArchive creates an Archive mock whose expectations are asserted when the
// test finishes.
func NewArchive(t interface {
	mock.TestingT
	Cleanup(func())
}) *Archive {
	m := &Archive{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Has implements resolver.Archive.
func (m *Archive) Has(name string) bool {
	args := m.Called(name)
	return args.Bool(0)
}

// ReadFile implements resolver.Archive.
func (m *Archive) ReadFile(name string) ([]byte, error) {
	args := m.Called(name)
	var data []byte
	if v := args.Get(0); v != nil {
		data = v.([]byte)
	}
	return data, args.Error(1)
}

// Names implements resolver.Archive.
func (m *Archive) Names() []string {
	args := m.Called()
	var names []string
	if v := args.Get(0); v != nil {
		names = v.([]string)
	}
	return names
}
