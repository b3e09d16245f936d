package schema

// Built-in schema flavors.
const (
	FlavorActiveDirectory = "ad"
	FlavorOpenLDAP        = "openldap"
)

// Built-in object types.
const (
	TypeUser      = "user"
	TypeGroup     = "group"
	TypeOU        = "ou"
	TypeContainer = "container"
)

// AttributeName is the logical attribute holding an entry's RDN value.
const AttributeName = "name"

func single(name, ldapName string, conv Converter) Attribute {
	return Attribute{Name: name, LDAPName: ldapName, Converter: conv}
}

func multi(name, ldapName string, conv Converter) Attribute {
	return Attribute{Name: name, LDAPName: ldapName, MultiValued: true, Converter: conv}
}

// DefaultRegistry returns a registry holding the built-in Active Directory
// and OpenLDAP schemas.
func DefaultRegistry() *Registry {
	return NewRegistry().MustRegister(
		activeDirectorySchemas()...,
	).MustRegister(
		openLDAPSchemas()...,
	)
}

func activeDirectorySchemas() []*Schema {
	common := []Attribute{
		single("guid", "objectGUID", GUIDConverter{}),
		single("created", "whenCreated", GeneralizedTimeConverter{}),
		single("modified", "whenChanged", GeneralizedTimeConverter{}),
		single("description", "description", nil),
	}

	user := New(FlavorActiveDirectory, TypeUser,
		[]string{"top", "person", "organizationalPerson", "user"},
		append([]Attribute{
			single(AttributeName, "cn", nil),
			single("firstName", "givenName", nil),
			single("lastName", "sn", nil),
			single("displayName", "displayName", nil),
			single("emailAddress", "mail", nil),
			single("username", "sAMAccountName", nil),
			single("upn", "userPrincipalName", nil),
			single("sid", "objectSid", SIDConverter{}),
			single("accountExpires", "accountExpires", WindowsTimeConverter{}),
			single("passwordLastSet", "pwdLastSet", WindowsTimeConverter{}),
			single("userAccountControl", "userAccountControl", IntConverter{}),
			multi("groups", "memberOf", nil),
			multi("otherPhones", "otherTelephone", nil),
		}, common...)...,
	)

	group := New(FlavorActiveDirectory, TypeGroup,
		[]string{"top", "group"},
		append([]Attribute{
			single(AttributeName, "cn", nil),
			single("emailAddress", "mail", nil),
			single("username", "sAMAccountName", nil),
			single("sid", "objectSid", SIDConverter{}),
			single("groupType", "groupType", IntConverter{}),
			multi("members", "member", nil),
			multi("groups", "memberOf", nil),
		}, common...)...,
	)

	ou := New(FlavorActiveDirectory, TypeOU,
		[]string{"top", "organizationalUnit"},
		append([]Attribute{
			single(AttributeName, "ou", nil),
		}, common...)...,
	)

	container := New(FlavorActiveDirectory, TypeContainer,
		[]string{"top", "container"},
		append([]Attribute{
			single(AttributeName, "cn", nil),
			single("showInAdvancedViewOnly", "showInAdvancedViewOnly", BoolConverter{}),
		}, common...)...,
	)

	return []*Schema{user, group, ou, container}
}

func openLDAPSchemas() []*Schema {
	common := []Attribute{
		single("created", "createTimestamp", GeneralizedTimeConverter{}),
		single("modified", "modifyTimestamp", GeneralizedTimeConverter{}),
		single("description", "description", nil),
	}

	user := New(FlavorOpenLDAP, TypeUser,
		[]string{"top", "inetOrgPerson"},
		append([]Attribute{
			single(AttributeName, "cn", nil),
			single("firstName", "givenName", nil),
			single("lastName", "sn", nil),
			single("displayName", "displayName", nil),
			single("emailAddress", "mail", nil),
			single("username", "uid", nil),
			single("uidNumber", "uidNumber", IntConverter{}),
			multi("phones", "telephoneNumber", nil),
		}, common...)...,
	)

	group := New(FlavorOpenLDAP, TypeGroup,
		[]string{"top", "groupOfNames"},
		append([]Attribute{
			single(AttributeName, "cn", nil),
			multi("members", "member", nil),
		}, common...)...,
	)

	ou := New(FlavorOpenLDAP, TypeOU,
		[]string{"top", "organizationalUnit"},
		append([]Attribute{
			single(AttributeName, "ou", nil),
		}, common...)...,
	)

	return []*Schema{user, group, ou}
}
