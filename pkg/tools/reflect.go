/*
 * Copyright 2024 caiflower Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package tools

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/modern-go/reflect2"
)

type TagFunc func(structField reflect.StructField, value reflect.Value) error

var durationType = reflect.TypeOf(time.Duration(0))

// DoTagFunc applies every fn to each field of the struct v points to.
func DoTagFunc(v interface{}, fns ...TagFunc) error {
	if reflect2.IsNil(v) {
		return nil
	}

	vType := reflect2.TypeOf(v).Type1()
	if vType.Kind() != reflect.Ptr || vType.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("DoTagFunc expects a pointer to struct, got %s", vType)
	}

	indirect := reflect.Indirect(reflect.ValueOf(v))
	for i := 0; i < indirect.NumField(); i++ {
		fieldStruct := vType.Elem().Field(i)
		for _, fn := range fns {
			if err := fn(fieldStruct, indirect.Field(i)); err != nil {
				return fmt.Errorf("field %s: %w", fieldStruct.Name, err)
			}
		}
	}
	return nil
}

// SetDefaults fills zero fields of v from their `default` tags.
func SetDefaults(v interface{}) error {
	return DoTagFunc(v, SetDefaultValueIfNil)
}

// SetDefaultValueIfNil sets the `default` tag value on a zero field. Plain bools are left alone
// because false cannot be told apart from unset.
func SetDefaultValueIfNil(structField reflect.StructField, vValue reflect.Value) error {
	if !vValue.CanSet() {
		return nil
	}
	def, hasDefault := structField.Tag.Lookup("default")

	switch vValue.Kind() {
	case reflect.Struct:
		for i := 0; i < vValue.NumField(); i++ {
			if err := SetDefaultValueIfNil(vValue.Type().Field(i), vValue.Field(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Ptr:
		elem := structField.Type.Elem()
		if elem.Kind() == reflect.Struct {
			if vValue.IsNil() {
				vValue.Set(reflect.New(elem))
			}
			return SetDefaultValueIfNil(reflect.StructField{Type: elem}, vValue.Elem())
		}
		if !hasDefault || !vValue.IsNil() {
			return nil
		}
		ptr := reflect.New(elem)
		if err := setValue(ptr.Elem(), def); err != nil {
			return err
		}
		vValue.Set(ptr)
		return nil
	case reflect.Bool:
		return nil
	}

	if !hasDefault || !vValue.IsZero() {
		return nil
	}
	return setValue(vValue, def)
}

func setValue(vValue reflect.Value, def string) error {
	if vValue.Type() == durationType {
		d, err := time.ParseDuration(def)
		if err != nil {
			return err
		}
		vValue.SetInt(int64(d))
		return nil
	}

	switch vValue.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(def, 10, vValue.Type().Bits())
		if err != nil {
			return err
		}
		vValue.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(def, 10, vValue.Type().Bits())
		if err != nil {
			return err
		}
		vValue.SetUint(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(def, vValue.Type().Bits())
		if err != nil {
			return err
		}
		vValue.SetFloat(v)
	case reflect.String:
		vValue.SetString(def)
	case reflect.Bool:
		v, err := strconv.ParseBool(def)
		if err != nil {
			return err
		}
		vValue.SetBool(v)
	}
	return nil
}
