// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package config

import (
	"encoding"
	"errors"
	"net"
	"net/url"
	"reflect"

	"github.com/asaskevich/govalidator"
	"github.com/c2h5oh/datasize"
	pkgerrors "github.com/pkg/errors"

	"github.com/yandex/pluginfactory/lib/confutil"
)

var InvalidURLError = errors.New("string is not valid URL")

var (
	urlPtrType          = reflect.TypeOf(&url.URL{})
	urlType             = reflect.TypeOf(url.URL{})
	ipType              = reflect.TypeOf(net.IP{})
	dataSizeType        = reflect.TypeOf(datasize.B)
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// StringToURLHook converts string to url.URL or *url.URL
func StringToURLHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String {
		return data, nil
	}
	if t != urlPtrType && t != urlType {
		return data, nil
	}
	str := data.(string)
	if !govalidator.IsURL(str) { // checks more than url.Parse
		return nil, pkgerrors.WithStack(InvalidURLError)
	}
	urlPtr, err := url.Parse(str)
	if err != nil {
		return nil, pkgerrors.WithStack(err)
	}
	if t == urlType {
		return *urlPtr, nil
	}
	return urlPtr, nil
}

var InvalidIPError = errors.New("string is not valid IP")

// StringToIPHook converts string to net.IP
func StringToIPHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String || t != ipType {
		return data, nil
	}
	ip := net.ParseIP(data.(string))
	if ip == nil {
		return nil, pkgerrors.WithStack(InvalidIPError)
	}
	return ip, nil
}

// StringToDataSizeHook converts string to datasize.ByteSize
func StringToDataSizeHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String || t != dataSizeType {
		return data, nil
	}
	var size datasize.ByteSize
	err := size.UnmarshalText([]byte(data.(string)))
	return size, err
}

// VariableInjectHook resolves ${tag:variable} references in strings.
// Strings decoded into interface values are kept as is, so they are
// resolved later, when concrete type is known.
func VariableInjectHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String || t.Kind() == reflect.Interface {
		return data, nil
	}
	str := data.(string)
	if !confutil.HasTags(str) {
		return data, nil
	}
	return confutil.ResolveTags(str, t)
}

// TextUnmarshallerHook decodes string into types implementing
// encoding.TextUnmarshaler by value or by pointer.
func TextUnmarshallerHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String {
		return data, nil
	}
	var unmarshaller encoding.TextUnmarshaler
	var result reflect.Value
	switch {
	case t.Implements(textUnmarshalerType) && t.Kind() != reflect.Ptr:
		result = reflect.New(t).Elem()
		unmarshaller = result.Interface().(encoding.TextUnmarshaler)
	case reflect.PtrTo(t).Implements(textUnmarshalerType):
		result = reflect.New(t)
		unmarshaller = result.Interface().(encoding.TextUnmarshaler)
		result = result.Elem()
	default:
		return data, nil
	}
	err := unmarshaller.UnmarshalText([]byte(data.(string)))
	if err != nil {
		return nil, pkgerrors.WithStack(err)
	}
	return result.Interface(), nil
}
