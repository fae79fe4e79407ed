package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Age  int    `json:"age"`
}

type container struct {
	ID    string `json:"id"`
	Users []user `json:"users"`
}

func TestFromStructToStruct(t *testing.T) {
	in := container{ID: "c1", Users: []user{{ID: "u1", Name: "Ann", Age: 31}}}

	obj, err := FromStruct(in)
	require.NoError(t, err)
	assert.Equal(t, String("c1"), obj["id"])
	users, err := obj.Objects("users")
	require.NoError(t, err)
	assert.Equal(t, Int(31), users[0]["age"])

	var out container
	require.NoError(t, ToStruct(obj, &out))
	assert.Equal(t, in, out)
}

func TestFromStruct_RejectsFloat(t *testing.T) {
	_, err := FromStruct(struct {
		Score float64 `json:"score"`
	}{Score: 0.5})
	assert.Error(t, err)
}

func TestJSONMappers(t *testing.T) {
	enc := JSONEncoder[user]()
	dec := JSONDecoder[user]()

	obj, err := enc(user{ID: "u1", Name: "Bo", Age: 7})
	require.NoError(t, err)

	u, err := dec(obj)
	require.NoError(t, err)
	assert.Equal(t, user{ID: "u1", Name: "Bo", Age: 7}, u)
}
