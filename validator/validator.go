package validator

import (
	"sync"

	"github.com/NethermindEth/committer/core/crypto"
	"github.com/go-playground/validator/v10"
)

var (
	once sync.Once
	v    *validator.Validate
)

// hash_fn accepts the names crypto.HashByName resolves
func validateHashFn(fl validator.FieldLevel) bool {
	name, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := crypto.HashByName(name)
	return err == nil
}

// Validator returns a singleton that can be used to validate various objects
func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New()

		if err := v.RegisterValidation("hash_fn", validateHashFn); err != nil {
			panic("failed to register validation: " + err.Error())
		}
	})
	return v
}
