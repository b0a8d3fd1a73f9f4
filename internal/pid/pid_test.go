package pid_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"codeberg.org/mutker/sensorctl/internal/errors"
	"codeberg.org/mutker/sensorctl/internal/pid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/run", "sensorctl-_dev_i2c-1-3c.pid"), pid.Path("/run", "/dev/i2c-1", 0x3c))
	assert.Equal(t, filepath.Join("/run", "sensorctl-default-3c.pid"), pid.Path("/run", "", 0x3c))
}

func TestAcquireRelease(t *testing.T) {
	path := pid.Path(t.TempDir(), "I2C1", 0x3c)

	lock, err := pid.Acquire(path)
	require.NoError(t, err)

	data, err := os.ReadFile(lock.Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, lock.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, lock.Release())
}

func TestAcquireHeldByLiveProcess(t *testing.T) {
	path := pid.Path(t.TempDir(), "I2C1", 0x3c)
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getppid())), 0o600))

	_, err := pid.Acquire(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))
}

func TestAcquireStaleFile(t *testing.T) {
	path := pid.Path(t.TempDir(), "I2C1", 0x3c)
	require.NoError(t, os.WriteFile(path, []byte("not a pid"), 0o600))

	lock, err := pid.Acquire(path)
	require.NoError(t, err)
	assert.NoError(t, lock.Release())
}
