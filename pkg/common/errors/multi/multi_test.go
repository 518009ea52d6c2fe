/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package multi

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	assert.Nil(t, New())
	assert.Nil(t, New(nil, nil))

	single := errors.New("apple view differs")
	assert.Equal(t, single, New(nil, single))

	err := New(single, errors.New("fiserv view differs"))
	m, ok := err.(Errors)
	require.True(t, ok)
	assert.Len(t, m, 2)
	assert.Equal(t, "2 errors occurred: apple view differs - fiserv view differs", err.Error())
}

func TestAppend(t *testing.T) {
	var err error
	err = Append(err, nil)
	assert.Nil(t, err)

	first := errors.New("first")
	err = Append(err, first)
	assert.Equal(t, first, err)

	err = Append(err, errors.New("second"))
	err = Append(err, New(errors.New("third"), errors.New("fourth")))
	m, ok := err.(Errors)
	require.True(t, ok)
	assert.Equal(t, []string{"first", "second", "third", "fourth"}, m.Messages())

	assert.Equal(t, err, Append(err, nil))
}

func TestUnwrap(t *testing.T) {
	target := errors.New("target")
	err := New(errors.New("other"), errors.Wrap(target, "wrapped"))
	assert.True(t, errors.Is(err, target))
	assert.Equal(t, "", Errors{}.Error())
	assert.Nil(t, Errors{}.ToError())
}
