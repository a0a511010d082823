package fusebridge

import (
	"github.com/stretchr/testify/mock"

	"github.com/stripefs/stripefs/internal/namespace"
)

// MockAccelerator is a testify mock of the Accelerator surface.
type MockAccelerator struct {
	mock.Mock
}

func (m *MockAccelerator) CreateFile(path string, mode uint32) error {
	args := m.Called(path, mode)
	return args.Error(0)
}

func (m *MockAccelerator) CreateDirectory(path string, mode uint32) error {
	args := m.Called(path, mode)
	return args.Error(0)
}

func (m *MockAccelerator) DeleteFile(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockAccelerator) RemoveDirectory(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockAccelerator) Rename(from, to string, flags uint32) error {
	args := m.Called(from, to, flags)
	return args.Error(0)
}

func (m *MockAccelerator) Chmod(path string, mode uint32) error {
	args := m.Called(path, mode)
	return args.Error(0)
}

func (m *MockAccelerator) Chown(path string, uid, gid uint32) error {
	args := m.Called(path, uid, gid)
	return args.Error(0)
}

func (m *MockAccelerator) Truncate(path string, size int64) error {
	args := m.Called(path, size)
	return args.Error(0)
}

func (m *MockAccelerator) Utimens(path string, atime, mtime int64) error {
	args := m.Called(path, atime, mtime)
	return args.Error(0)
}

func (m *MockAccelerator) Read(path string, buf []byte, offset int64) (int, error) {
	args := m.Called(path, buf, offset)
	return args.Int(0), args.Error(1)
}

func (m *MockAccelerator) Write(path string, data []byte, offset int64) (int, error) {
	args := m.Called(path, data, offset)
	return args.Int(0), args.Error(1)
}

func (m *MockAccelerator) GetMetadata(path string) (namespace.FileMetadata, bool) {
	args := m.Called(path)
	return args.Get(0).(namespace.FileMetadata), args.Bool(1)
}

func (m *MockAccelerator) ListDirectory(path string) []string {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}
